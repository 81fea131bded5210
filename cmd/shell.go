// This package provides utilities that underlie the verifier command:
// config loading, process lifecycle, and stats/logging setup. The verifier
// takes a single "-config" flag naming a JSON file unmarshalled into a
// Config; the holder command takes no flags and reads environment variables.

package cmd

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/didpop/verifier/log"
	"github.com/didpop/verifier/metrics"
)

// StatsAndLogging constructs a metrics.Scope on the default Prometheus
// registerer and a Logger named after component, and returns both. logConf
// is not read: the logger uses logrus's default level.
func StatsAndLogging(logConf SyslogConfig, component string) (metrics.Scope, log.Logger) {
	scope := metrics.NewPromScope(prometheus.DefaultRegisterer)
	logger := log.New(component)
	return scope, logger
}

// FailOnError exits and prints an error message if err is non-nil.
func FailOnError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}

// DebugServer starts a server exposing /metrics (Prometheus) and /healthz,
// matching the debug surface every teacher-pack service carries separate
// from its public listener.
func DebugServer(addr string) {
	if addr == "" {
		fmt.Fprintln(os.Stderr, "unable to boot debug server: no address configured")
		os.Exit(1)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to boot debug server on %q: %s\n", addr, err)
		os.Exit(1)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if err := http.Serve(ln, mux); err != nil {
		fmt.Fprintf(os.Stderr, "debug server exited: %s\n", err)
	}
}

// ReadConfigFile unmarshals the JSON content of filename into out.
func ReadConfigFile(filename string, out interface{}) error {
	configData, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	return json.Unmarshal(configData, out)
}

var signalToName = map[os.Signal]string{
	syscall.SIGTERM: "SIGTERM",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGHUP:  "SIGHUP",
}

// CatchSignals catches SIGTERM, SIGINT, SIGHUP and executes a callback
// before exiting.
func CatchSignals(logger log.Logger, callback func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	signal.Notify(sigChan, syscall.SIGINT)
	signal.Notify(sigChan, syscall.SIGHUP)

	sig := <-sigChan
	logger.Info(fmt.Sprintf("Caught %s", signalToName[sig]))

	if callback != nil {
		callback()
	}

	logger.Info("Exiting")
	os.Exit(0)
}
