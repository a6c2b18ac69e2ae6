package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"clusterwatch/pkg/adapters"
	"clusterwatch/pkg/adapters/events"
	"clusterwatch/pkg/agents/status"
	"clusterwatch/pkg/controllers/podtrigger"
	"clusterwatch/pkg/core"
	observabilitymetrics "clusterwatch/pkg/observability/metrics"
	"clusterwatch/pkg/playbooks"
	"clusterwatch/pkg/ratelimit"
	"clusterwatch/pkg/sink"
	"clusterwatch/pkg/store"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	var metricsAddr string
	var probeAddr string
	var enableLeaderElection bool
	var playbooksConfig string
	var clusterName string
	var sinkName string
	var sinkToken string
	var iterationTimeout time.Duration
	var rateLimitRetention time.Duration

	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the health probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false, "Enable leader election for the playbook controller.")
	flag.StringVar(&playbooksConfig, "playbooks-config", "", "Path to the YAML playbook configuration. Pod triggers are disabled when empty.")
	flag.StringVar(&clusterName, "cluster-name", os.Getenv("CLUSTER_NAME"), "Name of this cluster in the service store.")
	flag.StringVar(&sinkName, "sink-name", "main", "Name of the discovery sink.")
	flag.StringVar(&sinkToken, "sink-token", os.Getenv("SINK_TOKEN"), "Base64 encoded JSON sink token. Service discovery is disabled when empty.")
	flag.DurationVar(&iterationTimeout, "discovery-iteration-timeout", 0, "Upper bound for one discovery cycle. Zero disables it.")
	flag.DurationVar(&rateLimitRetention, "rate-limit-retention", 24*time.Hour, "Age after which rate limiter entries are evicted. Must exceed every trigger rate_limit.")
	opts := zap.Options{Development: true, Level: defaultLogLevel()}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: metricsAddr,
		},
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "clusterwatch-agent",
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	clusterClient := adapters.NewControllerRuntimeClient(mgr.GetAPIReader())
	metrics := observabilitymetrics.Default()
	limiter := ratelimit.New(nil)

	if playbooksConfig != "" {
		if err := setupPlaybooks(mgr, playbooksConfig, clusterClient, limiter, metrics); err != nil {
			setupLog.Error(err, "unable to set up playbooks", "config", playbooksConfig)
			os.Exit(1)
		}
		if err := mgr.Add(evictionRunnable(limiter, rateLimitRetention)); err != nil {
			setupLog.Error(err, "unable to set up rate limiter eviction")
			os.Exit(1)
		}
	}

	if sinkToken != "" {
		if err := setupSink(mgr, core.SinkConfig{Name: sinkName, ClusterName: clusterName, Token: sinkToken}, clusterClient, metrics, iterationTimeout); err != nil {
			setupLog.Error(err, "unable to set up sink", "sink", sinkName)
			os.Exit(1)
		}
	} else {
		setupLog.Info("no sink token configured, service discovery disabled")
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

func setupPlaybooks(mgr ctrl.Manager, path string, clusterClient adapters.ClusterClient, limiter *ratelimit.Limiter, metrics adapters.MetricsRecorder) error {
	cfg, err := playbooks.LoadConfig(path)
	if err != nil {
		return err
	}

	logger := ctrl.Log.WithName("playbooks")
	recorder := events.NewRecorder(mgr.GetEventRecorderFor("clusterwatch-actions"))
	books, err := playbooks.Build(cfg, playbooks.DefaultRegistry(), playbooks.Dependencies{
		Limiter: limiter,
		Clock:   core.RealClock(),
		Nodes:   clusterClient,
		Events:  recorder,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	runner := playbooks.NewRunner(books, core.RealClock(), logger.WithName("runner"), metrics, recorder)
	if err := podtrigger.SetupWithManager(mgr, books, runner, metrics); err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	setupLog.Info("playbooks loaded", "count", len(books))
	return nil
}

func setupSink(mgr ctrl.Manager, cfg core.SinkConfig, lister adapters.WorkloadLister, metrics adapters.MetricsRecorder, iterationTimeout time.Duration) error {
	token, err := core.ValidateSinkConfig(&cfg)
	if err != nil {
		return err
	}

	serviceStore, err := openStore(token, cfg.ClusterName)
	if err != nil {
		return err
	}

	tracker := status.NewTracker(nil)
	s, err := sink.New(cfg, sink.Dependencies{
		Lister:           lister,
		Store:            serviceStore,
		Metrics:          metrics,
		Tracker:          tracker,
		Logger:           ctrl.Log,
		IterationTimeout: iterationTimeout,
	})
	if err != nil {
		return err
	}

	if err := mgr.Add(s.Runnable()); err != nil {
		s.Stop()
		return err
	}
	if err := mgr.AddReadyzCheck("discovery", tracker.Check); err != nil {
		return err
	}

	setupLog.Info("sink started", "sink", s.Name(), "cluster", cfg.ClusterName, "period", core.DiscoveryPeriod(cfg))
	return nil
}

// openStore returns an in-process store for memory:// URLs and a Postgres
// store otherwise.
func openStore(token core.SinkToken, cluster string) (store.ServiceStore, error) {
	parsed, err := url.Parse(token.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if parsed.Scheme == "memory" {
		return store.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return store.NewPostgresStore(ctx, token.StoreURL, token.AccountID, cluster, core.DefaultBackoff())
}

func evictionRunnable(limiter *ratelimit.Limiter, retention time.Duration) manager.RunnableFunc {
	logger := ctrl.Log.WithName("ratelimit")
	return func(ctx context.Context) error {
		sleeper := core.TimerSleeper()
		for sleeper.Sleep(ctx, time.Hour) == nil {
			if evicted := limiter.Evict(retention); evicted > 0 {
				logger.V(1).Info("evicted rate limiter entries", "evicted", evicted, "remaining", limiter.Len())
			}
		}
		return nil
	}
}

func defaultLogLevel() zapcore.LevelEnabler {
	env := os.Getenv("LOG_LEVEL")
	if env == "" {
		return zapcore.InfoLevel
	}
	if verbosity, err := strconv.Atoi(env); err == nil {
		return zapcore.Level(-verbosity)
	}
	level, err := zapcore.ParseLevel(env)
	if err != nil {
		setupLog.Error(fmt.Errorf("invalid LOG_LEVEL value: %w", err), "defaulting log level to info")
		return zapcore.InfoLevel
	}
	return level
}
