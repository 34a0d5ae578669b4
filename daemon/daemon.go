// `slurmgpu daemon` - long-running forecast service.
//
// The daemon refreshes Slurm state on a fixed cadence and keeps the last
// good capture in memory.  Snapshots for arbitrary horizons and partitions
// are computed on demand from that capture and served over a small HTTP
// API.  Optionally, each refresh publishes the standard snapshots to Kafka
// and appends them to a Postgres history table.
//
// Termination: SIGHUP or SIGTERM shuts the daemon down in an orderly
// manner.  The daemon logs to the syslog once it has started; startup
// errors also reach stderr.

package daemon

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/syslog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"slurmgpu/command"
	"slurmgpu/common"
	"slurmgpu/db"
)

const (
	defaultListenPort     = 8088
	defaultRefreshSeconds = 60
	logTag                = "slurmgpu/daemon"
)

type DaemonCommand struct {
	command.VerboseArgs
	command.SourceArgs
	command.HorizonArgs
	command.PolicyArgs
	port        string
	refresh     string
	kafkaBroker string
	database    string
	cluster     string

	listenPort      int
	refreshInterval time.Duration
}

func (dc *DaemonCommand) Add(fs *flag.FlagSet) {
	dc.VerboseArgs.Add(fs)
	dc.SourceArgs.Add(fs)
	dc.HorizonArgs.Add(fs)
	dc.PolicyArgs.Add(fs)
	fs.StringVar(&dc.port, "port", "", "Listen for connections on `port` (default 8088)")
	fs.StringVar(&dc.refresh, "refresh-seconds", "", "Refresh Slurm state every `seconds` (default 60)")
	fs.StringVar(&dc.kafkaBroker, "kafka-broker", "", "Publish snapshots to this `host:port` (optional)")
	fs.StringVar(&dc.database, "database", "", "Append snapshots to this Postgres `connection-string` (optional)")
	fs.StringVar(&dc.cluster, "cluster", "", "Cluster `name` used in Kafka topic names")
}

func (dc *DaemonCommand) Summary() []string {
	return []string{
		"Run a forecast service that refreshes Slurm state periodically,",
		"serves snapshots over HTTP, and optionally publishes them to Kafka",
		"and a Postgres history table.",
	}
}

func (dc *DaemonCommand) Validate() error {
	common.ApplyDefault(&dc.port, common.DaemonPort)
	common.ApplyDefault(&dc.refresh, common.ForecastRefreshSeconds)
	common.ApplyDefault(&dc.kafkaBroker, common.DaemonKafkaBroker)
	common.ApplyDefault(&dc.database, common.DaemonDatabase)
	common.ApplyDefault(&dc.cluster, common.DaemonCluster)

	var e1, e2, e3, e4, e5, e6, e7 error
	e1 = dc.VerboseArgs.Validate()
	e2 = dc.SourceArgs.Validate()
	e3 = dc.HorizonArgs.Validate()
	e4 = dc.PolicyArgs.Validate()
	dc.listenPort = defaultListenPort
	if dc.port != "" {
		port, err := strconv.Atoi(dc.port)
		if err != nil || port < 1 || port > 65535 {
			e5 = fmt.Errorf("bad -port value %q", dc.port)
		} else {
			dc.listenPort = port
		}
	}
	seconds := defaultRefreshSeconds
	if dc.refresh != "" {
		parsed, err := strconv.Atoi(dc.refresh)
		if err != nil || parsed < 1 {
			e6 = fmt.Errorf("bad -refresh-seconds value %q", dc.refresh)
		} else {
			seconds = parsed
		}
	}
	dc.refreshInterval = time.Duration(seconds) * time.Second
	if dc.kafkaBroker != "" && dc.cluster == "" {
		e7 = errors.New("-kafka-broker requires -cluster for topic naming")
	}
	return errors.Join(e1, e2, e3, e4, e5, e6, e7)
}

func (dc *DaemonCommand) Perform() error {
	return dc.RunDaemon()
}

func (dc *DaemonCommand) RunDaemon() error {
	logger, err := syslog.Dial("", "", syslog.LOG_INFO|syslog.LOG_USER, logTag)
	if err != nil {
		return fmt.Errorf("FATAL ERROR: Failing to open logger: %v", err)
	}
	common.Log.SetUnderlying(logger)

	svc := newService(dc.Client(), dc.Policy(), dc.HorizonHours, dc.refreshInterval)
	if dc.database != "" {
		store, err := db.Open(context.Background(), dc.database)
		if err != nil {
			return err
		}
		defer store.Close()
		svc.store = store
	}
	if dc.kafkaBroker != "" {
		publisher, err := newKafkaPublisher(dc.kafkaBroker, dc.cluster)
		if err != nil {
			return err
		}
		defer publisher.Close()
		svc.publisher = publisher
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go svc.run(ctx, &wg)

	mux := http.NewServeMux()
	registerAPI(mux, svc)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", dc.listenPort),
		Handler: mux,
	}
	serverErrs := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- err
		}
	}()
	common.Log.Infof("Listening on port %d", dc.listenPort)

	waitForSignal(syscall.SIGHUP, syscall.SIGTERM)

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		common.Log.Warningf("HTTP shutdown: %v", err)
	}
	wg.Wait()

	select {
	case err := <-serverErrs:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}

func waitForSignal(signals ...os.Signal) {
	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, signals...)
	<-stopSignal
}
