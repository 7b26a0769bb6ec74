package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"thirdcoast.systems/anyvid/cmd/web/internal/web"
	"thirdcoast.systems/anyvid/internal/config"
	"thirdcoast.systems/anyvid/internal/cookies"
	"thirdcoast.systems/anyvid/internal/extraction"
	"thirdcoast.systems/anyvid/internal/mux"
	"thirdcoast.systems/anyvid/internal/proxy"
	"thirdcoast.systems/anyvid/pkg/ffmpeg"
	"thirdcoast.systems/anyvid/pkg/ytdlp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting web service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetLogLoggerLevel(conf.SlogLevel())

	client := &ytdlp.Client{
		Path:        conf.YtdlpPath,
		CookiesFile: conf.CookiesPath,
		Proxy:       conf.ProxyURL,
	}
	checkTools(ctx, client, conf.FFmpegPath)

	streams, err := proxy.New(proxy.Options{
		ConnectTimeout: conf.UpstreamConnectTimeout,
		ReadTimeout:    conf.UpstreamReadTimeout,
		WriteTimeout:   conf.UpstreamWriteTimeout,
		PoolTimeout:    conf.UpstreamPoolTimeout,
		MaxConns:       conf.UpstreamMaxConns,
		ChunkSize:      conf.DownloadChunkSize,
		ProxyURL:       conf.ProxyURL,
	})
	if err != nil {
		slog.Error("failed to create stream proxy", "error", err)
		os.Exit(1)
	}

	pipeline := mux.NewPipeline(
		mux.YtdlpProducers{Client: client},
		mux.FFmpegMuxer{Binary: conf.FFmpegPath},
		mux.Options{
			ScratchDir:  conf.ScratchDir,
			GracePeriod: conf.MuxGracePeriod,
			ChunkSize:   conf.DownloadChunkSize,
		},
	)

	cookieStore := cookies.NewStore(afero.NewOsFs(), conf.CookiesPath)
	if cookieStore.Exists() {
		slog.Info("using cookies file", "path", cookieStore.Path())
	} else {
		slog.Info("no cookies file yet; POST /api/cookies to add one", "path", cookieStore.Path())
	}

	e, err := web.NewWebserver(conf, web.Services{
		Resolver: extraction.NewGateway(client, conf.ExtractWorkers, conf.InfoTimeout),
		Streams:  streams,
		Muxer:    pipeline,
		Cookies:  cookieStore,
	})
	if err != nil {
		slog.Error("failed to create webserver", "error", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	slog.Info("Listening", "addr", conf.Addr())
	if err := e.Start(conf.Addr()); err != nil {
		if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
			return
		}
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// checkTools logs the external binaries in use. Missing ones only degrade
// the endpoints that need them.
func checkTools(ctx context.Context, client *ytdlp.Client, ffmpegPath string) {
	versionCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if version, err := client.Version(versionCtx); err != nil {
		slog.Warn("yt-dlp not usable; /api/info will fail", "path", client.PathOrDefault(), "error", err)
	} else {
		slog.Info("found yt-dlp", "version", version)
	}

	if path, err := ffmpeg.LookPath(ffmpegPath); err != nil {
		slog.Warn("ffmpeg not found; merged downloads will fail", "error", err)
	} else {
		slog.Info("found ffmpeg", "path", path)
	}
}
