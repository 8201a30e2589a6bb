package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/grible/chatline/internal/chat"
	"github.com/grible/chatline/internal/chat/history"
	"github.com/grible/chatline/internal/gateway"
	"github.com/grible/chatline/pkg/semver"
)

// Version - app version fingerprint
var Version = semver.V{Minor: 4}.String()

func main() {
	app := cli.NewApp()
	app.Name = "chatsrv"
	app.Usage = "text chat server over TCP"
	app.Version = Version
	app.Commands = []cli.Command{
		{
			Name:      "server",
			ShortName: "s",
			Usage:     "Start chat server",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config,c",
					Usage: "Path of TOML configuration file",
				},
				cli.StringFlag{
					Name:  "address,a",
					Usage: "TCP listen address",
					Value: ":8080",
				},
				cli.StringFlag{
					Name:  "ws-address,w",
					Usage: "WebSocket gateway listen address (empty disables the gateway)",
				},
				cli.IntFlag{
					Name:  "history,n",
					Usage: "Num of recent messages replayed to a newly logged in client",
					Value: 10,
				},
				cli.BoolFlag{
					Name:  "debug,d",
					Usage: "Enable debug output",
				},
			},
			Action: server,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Printf("Error: %s\n", err.Error())
		os.Exit(1)
	}
}

func server(ctx *cli.Context) error {
	conf := defaultConfiguration()
	if path := ctx.String("config"); path != "" {
		if err := conf.LoadFromFile(path); err != nil {
			return err
		}
	}
	conf.LoadFromContext(ctx)
	if err := conf.Init(); err != nil {
		return err
	}

	log.SetFormatter(&LineFormatter{})
	if conf.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.WithField("version", Version).Infof("chat server is launching, press Ctrl-C to stop")

	options := []chat.ServerOption{chat.WithLogger(log.StandardLogger())}
	if conf.HistoryGreets > 0 {
		stack, err := history.NewStack(conf.HistoryGreets)
		if err != nil {
			return err
		}
		options = append(options, chat.WithHistory(stack, conf.HistoryGreets))
	}
	srv, err := chat.NewServer(options...)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", conf.BindAddress)
	if err != nil {
		return err
	}
	go srv.Serve(listener)
	log.Infof("listening on %s", conf.BindAddress)

	var web *http.Server
	if conf.WSAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", gateway.NewHandler(srv, log.StandardLogger()))
		web = &http.Server{Addr: conf.WSAddress, Handler: mux}
		go func() {
			if err := web.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("websocket gateway failed")
			}
		}()
		log.Infof("websocket gateway listening on %s/ws", conf.WSAddress)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("got stop signal")
	if web != nil {
		web.Close()
	}
	log.Infof("chat server stopped in %s, bye", srv.Shutdown(10*time.Second))
	return nil
}
