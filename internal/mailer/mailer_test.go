package mailer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "mailsched/pkg/logx"
)

func render(t *testing.T, from string, msg Message, log logx.Logger) []byte {
	t.Helper()
	m, err := Build(from, msg, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), log)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func parseParts(t *testing.T, raw []byte) (*mail.Message, []*multipart.Part, [][]byte) {
	t.Helper()
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	mt, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mt)

	mr := multipart.NewReader(m.Body, params["boundary"])
	var (
		parts  []*multipart.Part
		bodies [][]byte
	)
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, p)
		bodies = append(bodies, b)
	}
	return m, parts, bodies
}

func TestBuildWithAttachment(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	att := filepath.Join(dir, "report.pdf")
	payload := bytes.Repeat([]byte("pdf-bytes"), 40)
	require.NoError(t, os.WriteFile(att, payload, 0o644))

	raw := render(t, "me@example.com", Message{
		To:          "ada@example.com",
		Subject:     "Monthly report",
		Body:        "Hello Ada",
		Attachments: []string{att},
	}, logx.Nop())

	m, parts, bodies := parseParts(t, raw)
	to, err := mail.ParseAddress(m.Header.Get("To"))
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", to.Address)
	from, err := mail.ParseAddress(m.Header.Get("From"))
	require.NoError(t, err)
	require.Equal(t, "me@example.com", from.Address)
	subj, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	require.NoError(t, err)
	require.Equal(t, "Monthly report", subj)

	require.Len(t, parts, 2)
	require.Contains(t, parts[0].Header.Get("Content-Type"), "text/plain")
	require.Equal(t, "Hello Ada", strings.TrimSpace(string(bodies[0])))

	require.Equal(t, "report.pdf", parts[1].FileName())
	require.Equal(t, "base64", parts[1].Header.Get("Content-Transfer-Encoding"))
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(bodies[1]), "\r\n", ""))
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

func TestBuildSkipsMissingAttachment(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	svc, log := logx.NewWithWriter(logx.Config{Level: "info", Console: true}, &logs)
	t.Cleanup(func() { _ = svc.Close() })

	dir := t.TempDir()
	kept := filepath.Join(dir, "kept.txt")
	require.NoError(t, os.WriteFile(kept, []byte("kept"), 0o644))
	raw := render(t, "me@example.com", Message{
		To:          "ada@example.com",
		Subject:     "s",
		Body:        "b",
		Attachments: []string{filepath.Join(dir, "gone.txt"), kept, dir},
	}, log)

	_, parts, _ := parseParts(t, raw)
	require.Len(t, parts, 2)
	require.Equal(t, "kept.txt", parts[1].FileName())
	require.Contains(t, logs.String(), "attachment not found; skipped")
	require.Contains(t, logs.String(), "attachment is a directory; skipped")
}

func TestBuildRejectsBadAddress(t *testing.T) {
	t.Parallel()
	_, err := Build("me@example.com", Message{To: "not an address"}, time.Now(), logx.Nop())
	require.Error(t, err)
}

func TestSMTPSenderMissingCredentials(t *testing.T) {
	t.Parallel()
	s := NewSMTPSender(SMTPConfig{Username: "me@example.com"}, logx.Nop())
	require.ErrorIs(t, s.Send(context.Background(), Message{To: "a@b.io"}), ErrMissingCredentials)
	require.Equal(t, "smtp.gmail.com:587", s.Addr())
}

// fakeSMTP accepts one plaintext session that advertises AUTH PLAIN and
// captures the DATA payload and the AUTH line.
func fakeSMTP(t *testing.T) (addr string, got <-chan string, auth <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	authOut := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = io.WriteString(conn, s+"\r\n") }

		reply("220 fake ESMTP")
		var data strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					reply("250 queued")
					out <- data.String()
					continue
				}
				data.WriteString(line)
				continue
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"):
				reply("250-fake")
				reply("250 AUTH PLAIN")
			case strings.HasPrefix(cmd, "HELO"):
				reply("250 fake")
			case strings.HasPrefix(cmd, "AUTH"):
				select {
				case authOut <- strings.TrimSpace(line):
				default:
				}
				reply("235 2.7.0 accepted")
			case cmd == "DATA":
				inData = true
				reply("354 go ahead")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 ok")
			}
		}
	}()
	return ln.Addr().String(), out, authOut
}

func TestSMTPSenderDelivers(t *testing.T) {
	t.Parallel()
	addr, got, auth := fakeSMTP(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	s := NewSMTPSender(SMTPConfig{Host: host, Port: p, Username: "me@example.com", Password: "secret", DialTimeout: 5 * time.Second}, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Send(ctx, Message{To: "ada@example.com", Subject: "hi", Body: "Hello Ada"}))

	select {
	case data := <-got:
		require.Contains(t, data, "ada@example.com")
		require.Contains(t, data, "Hello Ada")
	case <-time.After(2 * time.Second):
		t.Fatal("no message captured")
	}
	select {
	case line := <-auth:
		require.True(t, strings.HasPrefix(strings.ToUpper(line), "AUTH PLAIN"), line)
		cred := strings.TrimSpace(line[len("AUTH PLAIN"):])
		dec, err := base64.StdEncoding.DecodeString(cred)
		require.NoError(t, err)
		require.Equal(t, "\x00me@example.com\x00secret", string(dec))
	default:
		t.Fatal("client did not authenticate")
	}
}

func TestSMTPSenderDialFailure(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: addr.Port, Username: "u", Password: "p", DialTimeout: time.Second}, logx.Nop())
	err = s.Send(context.Background(), Message{To: "ada@example.com"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "smtp send via 127.0.0.1:")
}

func TestLimitedThrottlesAndHonorsContext(t *testing.T) {
	t.Parallel()
	var sent atomic.Int32
	inner := SenderFunc(func(context.Context, Message) error {
		sent.Add(1)
		return nil
	})

	l := NewLimited(inner, 5)
	start := time.Now()
	for i := 0; i < 7; i++ {
		require.NoError(t, l.Send(context.Background(), Message{To: "a@b.io"}))
	}
	// burst 5, then two more at 5/s
	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	require.Equal(t, int32(7), sent.Load())

	l.SetRate(0.01)
	require.NoError(t, l.Send(context.Background(), Message{To: "a@b.io"}))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, l.Send(ctx, Message{To: "a@b.io"}))
	require.Equal(t, int32(8), sent.Load())

	l.SetRate(0)
	require.NoError(t, l.Send(context.Background(), Message{To: "a@b.io"}))
}
