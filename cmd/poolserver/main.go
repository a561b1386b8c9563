// Command poolserver runs a plain TCP echo server. It is the remote
// endpoint the pooled client dials against; it holds no pool itself.
package main

import (
	"errors"
	"flag"
	"io"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"netpool/pkg/logger"
)

func main() {
	addr := flag.String("addr", ":7070", "Listen address")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		log.ErrorWithErr("listen failed", err)
		os.Exit(1)
	}
	log.InfoWith("echo server listening", "addr", *addr)

	var closing atomic.Bool
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		closing.Store(true)
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if closing.Load() {
				return
			}
			log.ErrorWithErr("accept failed", err)
			continue
		}
		go echo(conn, log)
	}
}

func echo(conn net.Conn, log *logger.Logger) {
	defer conn.Close()
	log.DebugWith("connection opened", "remote", conn.RemoteAddr().String())
	if _, err := io.Copy(conn, conn); err != nil && !errors.Is(err, net.ErrClosed) {
		log.DebugWith("connection error", "remote", conn.RemoteAddr().String(), "error", err.Error())
	}
	log.DebugWith("connection closed", "remote", conn.RemoteAddr().String())
}
