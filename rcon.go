package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gorcon/rcon"
)

type rconConn interface {
	Execute(cmd string) (string, error)
	Close() error
}

type dialFunc func(addr, password string, timeout time.Duration) (rconConn, error)

// Console runs game console commands over RCON, one session per command.
type Console struct {
	addr     string
	password string
	timeout  time.Duration
	dial     dialFunc
}

func NewConsole(cfg RCONConfig) *Console {
	return &Console{
		addr:     cfg.Address(),
		password: cfg.Password,
		timeout:  cfg.Timeout,
		dial:     dialRCON,
	}
}

// Execute connects, authenticates, runs cmd and returns the server's reply.
// Failures are returned as is; nothing is retried.
func (c *Console) Execute(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	conn, err := c.dial(c.addr, c.password, c.timeout)
	if err != nil {
		return "", fmt.Errorf("rcon connect %s: %w", c.addr, err)
	}
	defer conn.Close()

	resp, err := conn.Execute(cmd)
	if err != nil {
		return "", fmt.Errorf("rcon execute: %w", err)
	}
	return resp, nil
}

func dialRCON(addr, password string, timeout time.Duration) (rconConn, error) {
	conn, err := rcon.Dial(addr, password,
		rcon.SetDialTimeout(timeout),
		rcon.SetDeadline(timeout),
		rcon.SetMaxCommandLen(4096),
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
