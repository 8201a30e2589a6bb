package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/grible/chatline/pkg/client"
	"github.com/grible/chatline/pkg/semver"
)

// Version - app version fingerprint
var Version = semver.V{Minor: 4}.String()

func main() {
	app := cli.NewApp()
	app.Name = "chatcli"
	app.Usage = "terminal client for the chat server"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "address,a",
			Usage: "Chat server address",
			Value: "localhost:8080",
		},
		cli.StringFlag{
			Name:  "nick,n",
			Usage: "Nickname to log in with",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Printf("Error: %s\n", err.Error())
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	nick := ctx.String("nick")
	if nick == "" {
		return cli.NewExitError("nickname is required, see --nick", 1)
	}

	fatal := make(chan error, 1)
	c, err := client.Dial(ctx.String("address"), client.Events{
		LoggedIn: func(nick string) {
			fmt.Printf("* logged in as %s\n", nick)
		},
		LoginFailed: func() {
			fatal <- fmt.Errorf("nickname %q is already taken", nick)
		},
		MessageAdded: func(nick, content string, at time.Time) {
			fmt.Printf("[%s] %s: %s\n", at.Local().Format("15:04:05"), nick, content)
		},
		UserJoined: func(nick string) {
			fmt.Printf("* %s joined\n", nick)
		},
		UserLeft: func(nick string) {
			fmt.Printf("* %s left\n", nick)
		},
		Disconnected: func(err error) {
			fatal <- fmt.Errorf("connection lost: %v", err)
		},
	})
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Login(nick); err != nil {
		return err
	}

	input := make(chan string)
	go func() {
		defer close(input)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case err := <-fatal:
			return cli.NewExitError(err.Error(), 1)
		case <-sig:
			return c.Close()
		case line, ok := <-input:
			if !ok || line == "/quit" {
				return c.Close()
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := c.Post(line); err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
		}
	}
}
