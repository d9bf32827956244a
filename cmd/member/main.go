package main

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Classroom/internal/adapters/rtc"
	"github.com/dkeye/Classroom/internal/audio"
	"github.com/dkeye/Classroom/internal/client"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/dialogue"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/dkeye/Classroom/internal/tts"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	script, err := loadScript(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load script")
	}

	var synth dialogue.Synthesizer
	if cfg.TTS.Provider == "elevenlabs" {
		synth = tts.NewElevenLabs(cfg.TTS, nil)
	}

	g, gctx := errgroup.WithContext(ctx)

	conn, err := client.Dial(gctx, cfg.Member.ServerURL, os.Getenv("MEMBER_TOKEN"))
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.Member.ServerURL).Msg("dial relay")
	}

	m, err := client.NewMember(gctx, conn, client.Options{
		Name:        cfg.Member.Name,
		Room:        cfg.Member.Room,
		Config:      cfg.Node(),
		Script:      script,
		Synthesizer: synth,
		View:        client.NewTerminalView(os.Stdout),
		Player:      client.NewWAVPlayer(filepath.Join(cfg.Member.AudioDir, "out")),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create member")
	}

	if cfg.Member.UseDataChannel {
		peer, err := client.NewPeer(rtc.Config(cfg.Server.ICEServers), conn)
		if err != nil {
			log.Warn().Err(err).Msg("data channel unavailable, snapshots use the websocket")
		} else {
			defer peer.Close()
			m.AttachPeer(peer)
		}
	}
	if err := m.Enter(); err != nil {
		log.Fatal().Err(err).Msg("enter room")
	}

	g.Go(func() error { return conn.WritePump(gctx, cfg.Server.PingPeriod) })
	g.Go(func() error { return conn.ReadPump(m.HandleText, m.HandleBinary) })
	g.Go(m.Run)
	g.Go(func() error { return readCommands(gctx, m) })
	if cfg.Member.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.Member.MetricsAddr, Handler: promhttp.Handler()}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Member.MetricsAddr).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info().Str("name", cfg.Member.Name).Str("room", cfg.Member.Room).Msg("member started; type start, next, skip or quit")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, client.ErrClosed) {
		log.Error().Err(err).Msg("member stopped")
		return
	}
	log.Info().Msg("member exited")
}

// readCommands feeds stdin lines to the member. The scanner goroutine is left
// blocked on stdin at shutdown.
func readCommands(ctx context.Context, m *client.Member) error {
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
		close(lines)
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return ctx.Err()
			}
			switch line {
			case "":
			case "quit", "exit":
				return context.Canceled
			default:
				if err := m.Input(line); err != nil {
					log.Warn().Err(err).Msg("input")
				}
			}
		}
	}
}

func loadScript(cfg *config.Config) (domain.Script, error) {
	if len(cfg.Dialogue.Script) == 0 {
		return domain.DefaultScript(), nil
	}
	script := make(domain.Script, 0, len(cfg.Dialogue.Script))
	for _, e := range cfg.Dialogue.Script {
		entry := domain.Entry{Speaker: e.Speaker, Text: e.Text, Color: e.Color}
		if e.Audio != "" {
			buf, err := audio.ReadWAVFile(filepath.Join(cfg.Member.AudioDir, e.Audio))
			if err != nil {
				return nil, err
			}
			entry.Audio = buf
		}
		script = append(script, entry)
	}
	return script, nil
}
