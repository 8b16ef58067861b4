package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"pr_panel/handler"
	"pr_panel/helper"
	"pr_panel/helper/atlassian"
	"pr_panel/helper/atlassian/bitbucket_impl"
	"pr_panel/helper/gitrepo"
	"pr_panel/helper/metrics"
	"pr_panel/helper/notify"
	"pr_panel/helper/panel"
	"pr_panel/log"
	"pr_panel/model"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	configPath string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "pr-panel",
	Short: "Bitbucket Server pull request panel",
	Long: `pr-panel polls Bitbucket Server for the pull requests you review and the
ones you authored, and serves them over a small HTTP API together with
approve, decline, merge and checkout actions.`,
	RunE: serve,
}

func init() {
	os.Setenv("APP_NAME", "pr-panel")
	logger := log.InitLogger(false)
	// Check if KUBERNETES_SERVICE_HOST is set
	if _, exists := os.LookupEnv("KUBERNETES_SERVICE_HOST"); !exists {
		// If not in Kubernetes, default LOG_LEVEL to DEBUG
		if _, set := os.LookupEnv("LOG_LEVEL"); !set {
			os.Setenv("LOG_LEVEL", "DEBUG")
		}
	}
	logger.SetLevel(log.GetLogLevel("LOG_LEVEL"))

	rootCmd.Flags().StringVarP(&configPath, "config", "c", helper.DefaultConfigPath, "path to the panel config file")
	rootCmd.Flags().StringVar(&listenAddr, "addr", "", "HTTP listen address, overrides server.addr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := helper.LoadConfigFile(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}

	var settings atomic.Pointer[model.BitbucketSettings]
	bb := cfg.Bitbucket
	settings.Store(&bb)

	var sinks []panel.Notifier
	if cfg.Telegram.Token != "" {
		telegram, err := notify.NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			log.Errorf("Telegram notifications disabled: %v", err)
		} else {
			sinks = append(sinks, telegram)
		}
	}
	panelModel := panel.New(sinks...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.InitPrometheusMetrics("pr_panel", reg)

	executor, err := handler.NewGocronExecutor()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	holder := handler.NewUpdateTaskHolder(ctx, executor, func(listener atlassian.ClientListener) (atlassian.Bitbucket, error) {
		current := *settings.Load()
		if err := helper.ValidateBitbucket(current); err != nil {
			return nil, err
		}
		return bitbucket_impl.New(nil, current, listener), nil
	}, panelModel, m)

	if err := holder.StartNew(); err != nil {
		log.Errorf("Polling not started, fix the config file to start it: %v", err)
	}

	watcher, err := helper.NewConfigWatcher(configPath, func(reloaded *model.Config) {
		next := reloaded.Bitbucket
		settings.Store(&next)
		log.Info("Config file changed, rescheduling the update task")
		if err := holder.RescheduleOrStart(); err != nil {
			log.Errorf("Reschedule after config change failed: %v", err)
		}
	})
	if err != nil {
		log.Warnf("Config hot reload disabled: %v", err)
	} else {
		watcher.Start()
		defer watcher.Close()
	}

	api := &handler.PanelAPIHandler{
		Holder:  holder,
		Panel:   panelModel,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}
	if cfg.Git.RepoPath != "" {
		repo, err := gitrepo.Open(cfg.Git.RepoPath, cfg.Git.RemoteName, cfg.Bitbucket.Login, cfg.Bitbucket.Password)
		if err != nil {
			log.Errorf("Checkout disabled: %v", err)
		} else {
			api.Repo = repo
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(gommonlog.INFO)
	api.Register(e)

	go func() {
		log.Infof("Listening on %s", cfg.Server.Addr)
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	holder.Cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP shutdown: %v", err)
	}
	if err := executor.Shutdown(); err != nil {
		log.Errorf("Scheduler shutdown: %v", err)
	}
	panelModel.Flush()
	return nil
}
