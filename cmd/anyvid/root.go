package main

import (
	"log/slog"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"thirdcoast.systems/anyvid/internal/config"
	"thirdcoast.systems/anyvid/internal/cookies"
	"thirdcoast.systems/anyvid/internal/extraction"
	"thirdcoast.systems/anyvid/internal/mux"
	"thirdcoast.systems/anyvid/internal/proxy"
	"thirdcoast.systems/anyvid/pkg/ytdlp"
)

// services is the backend stack shared by the subcommands.
type services struct {
	conf     *config.Config
	gateway  *extraction.Gateway
	proxy    *proxy.Proxy
	pipeline *mux.Pipeline
	cookies  *cookies.Store
}

func newServices(conf *config.Config) (*services, error) {
	client := &ytdlp.Client{
		Path:        conf.YtdlpPath,
		CookiesFile: conf.CookiesPath,
		Proxy:       conf.ProxyURL,
	}

	p, err := proxy.New(proxy.Options{
		ConnectTimeout: conf.UpstreamConnectTimeout,
		ReadTimeout:    conf.UpstreamReadTimeout,
		WriteTimeout:   conf.UpstreamWriteTimeout,
		PoolTimeout:    conf.UpstreamPoolTimeout,
		MaxConns:       conf.UpstreamMaxConns,
		ChunkSize:      conf.DownloadChunkSize,
		ProxyURL:       conf.ProxyURL,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		conf:    conf,
		gateway: extraction.NewGateway(client, conf.ExtractWorkers, conf.InfoTimeout),
		proxy:   p,
		pipeline: mux.NewPipeline(
			mux.YtdlpProducers{Client: client},
			mux.FFmpegMuxer{Binary: conf.FFmpegPath},
			mux.Options{ScratchDir: conf.ScratchDir, GracePeriod: conf.MuxGracePeriod, ChunkSize: conf.DownloadChunkSize},
		),
		cookies: cookies.NewStore(afero.NewOsFs(), conf.CookiesPath),
	}, nil
}

func newRootCmd() *cobra.Command {
	var svc *services

	root := &cobra.Command{
		Use:          "anyvid",
		Short:        "Resolve and download media from any page yt-dlp understands",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.LoadConfig(cmd.Context())
			if err != nil {
				return err
			}
			slog.SetLogLoggerLevel(conf.SlogLevel())
			svc, err = newServices(conf)
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.String("yt-dlp", "", "Path to the yt-dlp executable")
	flags.String("ffmpeg", "", "Path to the ffmpeg executable")
	flags.String("cookies", "", "Netscape cookies.txt passed to yt-dlp")
	flags.String("proxy", "", "Outbound proxy for yt-dlp and downloads")
	flags.String("log-level", "", "debug, info, warn or error")
	lo.Must0(viper.BindPFlag("YTDLP_PATH", flags.Lookup("yt-dlp")))
	lo.Must0(viper.BindPFlag("FFMPEG_PATH", flags.Lookup("ffmpeg")))
	lo.Must0(viper.BindPFlag("COOKIES_PATH", flags.Lookup("cookies")))
	lo.Must0(viper.BindPFlag("PROXY_URL", flags.Lookup("proxy")))
	lo.Must0(viper.BindPFlag("LOG_LEVEL", flags.Lookup("log-level")))

	get := func() *services { return svc }
	root.AddCommand(newInfoCmd(get), newGetCmd(get), newCookiesCmd(get))
	return root
}
