/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Request-scoped failures. None of these are fatal to the process; each is
// reported to the offending client and the session continues.
var (
	errOutOfRange     = errors.New("row, column, or value out of range")
	errNotParticipant = errors.New("identity is not part of this match")
	errMatchNotLive   = errors.New("match is not in progress")
	errMatchOver      = errors.New("match already completed")
	errNoHints        = errors.New("no hints remaining")
	errLobbyFull      = errors.New("match already has its players")
	errNotWaiting     = errors.New("readiness can only change before the countdown")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
