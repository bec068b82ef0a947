// Command kioskbench is the latency probe, grounded directly on the
// teacher's cmd/perfvoice: a small standalone client that drives a
// synthetic push-to-talk turn against a running kiosk server and reports
// time-to-first-speech-segment, replacing perfvoice's gorilla/websocket
// transport with the kiosk's SSE + multipart-upload surface.
package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/antoniostano/kiosk/internal/kioskcmd"
)

type options struct {
	baseURL     string
	turns       int
	turnTimeout time.Duration
	verbose     bool
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kioskbench: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "kioskbench: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "kiosk server base URL")
	flag.IntVar(&cfg.turns, "turns", 5, "number of synthetic push-to-talk turns to replay")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 15000, "timeout waiting for a speech segment per turn")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if turnTimeoutMS < 500 {
		turnTimeoutMS = 500
	}
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond
	return cfg, nil
}

func run(cfg options) error {
	client := &http.Client{Timeout: 0}

	events, err := openKioskEvents(client, cfg.baseURL)
	if err != nil {
		return fmt.Errorf("open kiosk events stream: %w", err)
	}
	defer events.Close()

	firstSegCh := make(chan time.Time, 32)
	go pumpFirstSegments(events, firstSegCh, cfg.verbose)

	wav := silentWAV(16000, 800*time.Millisecond)

	for i := 0; i < cfg.turns; i++ {
		start := time.Now()
		if err := pttDown(client, cfg.baseURL); err != nil {
			return fmt.Errorf("turn %d ptt down: %w", i+1, err)
		}
		if err := uploadAudio(client, cfg.baseURL, wav); err != nil {
			return fmt.Errorf("turn %d audio upload: %w", i+1, err)
		}
		if err := pttUp(client, cfg.baseURL); err != nil {
			return fmt.Errorf("turn %d ptt up: %w", i+1, err)
		}

		select {
		case t := <-firstSegCh:
			latency := t.Sub(start)
			fmt.Printf("kioskbench: turn %d/%d time_to_first_segment=%s\n", i+1, cfg.turns, latency)
		case <-time.After(cfg.turnTimeout):
			fmt.Printf("kioskbench: turn %d/%d timed out after %s\n", i+1, cfg.turns, cfg.turnTimeout)
		}
	}
	return nil
}

func openKioskEvents(client *http.Client, baseURL string) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/v1/kiosk/events", nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, fmt.Errorf("HTTP %d", res.StatusCode)
	}
	return res.Body, nil
}

// pumpFirstSegments scans the SSE body for speech.segment envelopes and
// reports the wall-clock time each one was observed.
func pumpFirstSegments(body io.Reader, out chan<- time.Time, verbose bool) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var env kioskcmd.Envelope
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env); err != nil {
			continue
		}
		if env.Type == kioskcmd.TypeSpeechSegment {
			select {
			case out <- time.Now():
			default:
			}
			if verbose {
				fmt.Printf("kioskbench: observed %s\n", env.Type)
			}
		}
	}
}

func pttDown(client *http.Client, baseURL string) error {
	return postNoBody(client, baseURL+"/v1/kiosk/ptt/down")
}

func pttUp(client *http.Client, baseURL string) error {
	return postNoBody(client, baseURL+"/v1/kiosk/ptt/up")
}

func postNoBody(client *http.Client, url string) error {
	res, err := client.Post(url, "application/octet-stream", nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
	if res.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", res.StatusCode)
	}
	return nil
}

func uploadAudio(client *http.Client, baseURL string, wav []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "turn.wav")
	if err != nil {
		return err
	}
	if _, err := part.Write(wav); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/kiosk/audio", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
	if res.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", res.StatusCode)
	}
	return nil
}

// silentWAV builds a minimal mono 16-bit PCM WAV of the given duration,
// enough to exercise the upload and STT decode path without a real
// recording.
func silentWAV(sampleRate int, dur time.Duration) []byte {
	numSamples := int(dur.Seconds() * float64(sampleRate))
	dataSize := numSamples * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}
