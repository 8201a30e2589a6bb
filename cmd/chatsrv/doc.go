// Package `chatsrv` implements server application for chat over TCP.
//
// To compile chat server locally, run from package directory:
//
//	go install .
//
// Then launch it with:
//
//	chatsrv server [options]
//
// Options may also come from a TOML configuration file,
// see `chatsrv server -h` for the full list.
package main
