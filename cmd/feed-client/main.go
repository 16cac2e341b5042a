package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"collabwiki/internal/article"
)

// feedLine covers both the welcome message and article events.
type feedLine struct {
	article.Event
	Transport string `json:"transport,omitempty"`
	Clients   int    `json:"clients,omitempty"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP event feed address")
	raw := flag.Bool("raw", false, "print JSON lines unchanged")
	only := flag.String("article", "", "only show events for this article title")
	flag.Parse()

	for {
		if err := run(*addr, os.Stdout, *raw, *only); err != nil {
			log.Printf("[feed-client] disconnected: %v", err)
		}
		time.Sleep(1 * time.Second) // auto reconnect
	}
}

func run(addr string, out io.Writer, raw bool, only string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[feed-client] connected to %s", addr)
	if err := follow(conn, out, raw, only); err != nil {
		return err
	}
	return os.ErrClosed
}

func follow(r io.Reader, out io.Writer, raw bool, only string) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()
		if raw {
			fmt.Fprintln(out, string(line))
			continue
		}

		var ev feedLine
		if err := json.Unmarshal(line, &ev); err != nil {
			fmt.Fprintln(out, string(line))
			continue
		}
		if s, ok := format(ev, only); ok {
			fmt.Fprintln(out, s)
		}
	}
	return sc.Err()
}

// format renders one feed line; ok is false when the filter hides it.
func format(ev feedLine, only string) (string, bool) {
	if ev.Type == "welcome" {
		return fmt.Sprintf("connected via %s (%d subscribers)", ev.Transport, ev.Clients), true
	}
	if only != "" && !strings.EqualFold(strings.TrimSpace(only), ev.ArticleTitle) {
		return "", false
	}

	var sb strings.Builder
	if !ev.At.IsZero() {
		sb.WriteString(ev.At.Local().Format("15:04:05") + " ")
	}
	sb.WriteString(ev.Type + " " + ev.ArticleTitle)
	if ev.SectionTitle != "" {
		sb.WriteString(" / " + ev.SectionTitle)
	}
	if ev.Contributor != "" {
		sb.WriteString(" by " + ev.Contributor)
	}
	fmt.Fprintf(&sb, " (v%d)", ev.Version)
	return sb.String(), true
}
