// Package `chatcli` implements a thin terminal client for the chat server.
//
// Launch it with:
//
//	chatcli -a localhost:8080 -n alice
//
// Every stdin line is posted to the chat; type /quit to leave.
package main
