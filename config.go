package timely

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/go-timely/internal/metrics"
	"github.com/jabolina/go-timely/pkg/timely/allocator"
)

// Kind selects one of the four allocator backends a Config can build.
// Grounded on the original Config enum (Thread / Process(n) /
// ProcessBinary(n) / Cluster{...}).
type Kind int

const (
	// KindThread gives every worker its own single-worker allocator, the
	// degenerate single-worker case; workers built this way share nothing.
	KindThread Kind = iota
	// KindProcess runs Workers workers in one OS process, exchanging
	// un-encoded values through in-memory channels.
	KindProcess
	// KindProcessBinary is KindProcess but forces every message through
	// IntoBytes/decode, exercising the same encoding path a real network
	// would.
	KindProcessBinary
	// KindCluster runs Workers workers in each of Processes OS processes,
	// every worker with its own address and its own TCP connection to every
	// other worker (the Cluster wire protocol's one-address-per-worker shape).
	KindCluster
)

func (k Kind) String() string {
	switch k {
	case KindThread:
		return "thread"
	case KindProcess:
		return "process"
	case KindProcessBinary:
		return "process-binary"
	case KindCluster:
		return "cluster"
	default:
		return "unknown"
	}
}

// Config describes how to build the allocator fleet for one call to
// Initialize. Grounded on the original's Config sum type and on its
// `install_options`/`from_matches`/`from_args` two-phase flag API
// (dropped by the distilled spec but present in
// communication/src/initialize.rs), reproduced here as InstallFlags/
// FromArgs so embedding callers can add their own kingpin flags to the
// same Application before parsing.
type Config struct {
	Kind Kind

	// Workers is the number of workers hosted by this process (the `-w`
	// flag). Always >= 1.
	Workers int

	// Processes is the total number of processes in the fleet (the `-n`
	// flag). Only meaningful for KindCluster.
	Processes int

	// ProcessIndex is this process's position within Processes (the `-p`
	// flag).
	ProcessIndex int

	// Addresses holds one `host:port` per worker in the fleet, in global
	// worker-index order (the `-h` host file). Only meaningful for
	// KindCluster. If empty, TryBuild returns ErrNoAddresses; InstallFlags
	// derives `localhost:2101+i` when no host file is given.
	Addresses []string

	// Report enables verbose connection-lifecycle logging on the Cluster
	// backend (the `-r` flag).
	Report bool

	// ZeroCopy records the `-z` flag, which makes InstallFlags choose
	// KindProcessBinary for a single-process fleet. TryBuild does not read
	// it; only Kind selects the backend.
	ZeroCopy bool

	// LogFn builds a Logger for worker index i, analogous to the
	// original's closure-based per-thread `log_fn` field. Defaults to
	// NewDefaultLogger(fmt.Sprintf("work-%d", i)) when nil.
	LogFn func(workerIndex int) Logger

	// Metrics, if non-nil, receives per-worker step and dataflow-lifecycle
	// observations from every worker Initialize spawns.
	Metrics *metrics.Registry
}

// InstallFlags registers the `-w -p -n -h -r -z` flags on app, returning a
// function that must be called after app.Parse to produce the resulting
// Config. Split into two phases, mirroring the original's
// install_options/from_matches split, so a caller can add its own flags to
// the same Application before parsing.
func InstallFlags(app *kingpin.Application) func() (Config, error) {
	workers := app.Flag("workers", "number of worker threads per process").Short('w').Default("1").Int()
	processIndex := app.Flag("process", "this process's index in the fleet").Short('p').Default("0").Int()
	processes := app.Flag("processes", "total number of processes in the fleet").Short('n').Default("1").Int()
	hostFile := app.Flag("hostfile", "newline-delimited host:port list, one per worker").Short('h').String()
	report := app.Flag("report", "log connection setup verbosely").Short('r').Bool()
	zerocopy := app.Flag("zerocopy", "force same-process workers through byte encoding").Short('z').Bool()

	return func() (Config, error) {
		cfg := Config{
			Workers:      *workers,
			Processes:    *processes,
			ProcessIndex: *processIndex,
			Report:       *report,
			ZeroCopy:     *zerocopy,
		}

		switch {
		case *processes > 1:
			cfg.Kind = KindCluster
			addrs, err := resolveAddresses(*hostFile, *workers**processes)
			if err != nil {
				return Config{}, err
			}
			cfg.Addresses = addrs
		case *zerocopy:
			cfg.Kind = KindProcessBinary
		case *workers > 1:
			cfg.Kind = KindProcess
		default:
			cfg.Kind = KindThread
		}

		return cfg, nil
	}
}

// FromArgs parses args (typically os.Args[1:]) against a fresh kingpin
// Application named name, equivalent to calling InstallFlags followed
// immediately by app.Parse(args) and the returned builder.
func FromArgs(name string, args []string) (Config, error) {
	app := kingpin.New(name, "distributed dataflow worker fleet")
	build := InstallFlags(app)
	if _, err := app.Parse(args); err != nil {
		return Config{}, fmt.Errorf("timely: parsing flags: %w", err)
	}
	return build()
}

// resolveAddresses reads a newline-delimited host:port list from path (or
// derives localhost:2101+i for count workers if path is empty), then
// applies any TIMELY_WORKER_ADDR_<i> environment overrides.
func resolveAddresses(path string, count int) ([]string, error) {
	var addrs []string
	if path == "" {
		addrs = make([]string, count)
		for i := range addrs {
			addrs[i] = fmt.Sprintf("localhost:%d", 2101+i)
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("timely: reading host file %s: %w", path, err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			addrs = append(addrs, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("timely: reading host file %s: %w", path, err)
		}
	}

	for i := range addrs {
		if override := os.Getenv(fmt.Sprintf("TIMELY_WORKER_ADDR_%d", i)); override != "" {
			addrs[i] = override
		}
	}
	return addrs, nil
}

// allocatorBuilder produces the Peer for one local worker. Assembling
// these up front, before any goroutine is spawned, matches the original's
// two-phase try_build/initialize_from split: configuration mistakes
// (bad host file, mismatched address count) surface as a plain error
// instead of a panic deep inside a worker goroutine.
type allocatorBuilder func() (allocator.Peer, error)

// TryBuild validates cfg and assembles one allocatorBuilder per local
// worker, without starting anything -- no goroutine is spawned and no
// socket is opened until Initialize calls each builder.
func (cfg Config) TryBuild() ([]allocatorBuilder, error) {
	if cfg.Workers <= 0 {
		return nil, ErrWorkersMustBePositive
	}

	switch cfg.Kind {
	case KindThread:
		builders := make([]allocatorBuilder, cfg.Workers)
		for i := range builders {
			builders[i] = func() (allocator.Peer, error) { return allocator.NewThreadPeer(), nil }
		}
		return builders, nil

	case KindProcess:
		fleet := allocator.NewProcessFleet(cfg.Workers)
		return processBuilders(fleet.Peer, cfg.Workers), nil

	case KindProcessBinary:
		fleet := allocator.NewProcessBinaryFleet(cfg.Workers)
		return processBuilders(fleet.Peer, cfg.Workers), nil

	case KindCluster:
		return cfg.clusterBuilders()

	default:
		return nil, ErrUnknownConfigKind
	}
}

func processBuilders[P allocator.Peer](peerOf func(int) P, workers int) []allocatorBuilder {
	builders := make([]allocatorBuilder, workers)
	for i := 0; i < workers; i++ {
		i := i
		builders[i] = func() (allocator.Peer, error) { return peerOf(i), nil }
	}
	return builders
}

func (cfg Config) clusterBuilders() ([]allocatorBuilder, error) {
	if len(cfg.Addresses) == 0 {
		return nil, ErrNoAddresses
	}
	if len(cfg.Addresses) != cfg.Workers*cfg.Processes {
		return nil, ErrAddressCountMismatch
	}
	if cfg.ProcessIndex < 0 || cfg.ProcessIndex >= cfg.Processes {
		return nil, ErrWorkerIndexOutOfRange
	}

	builders := make([]allocatorBuilder, cfg.Workers)
	for local := 0; local < cfg.Workers; local++ {
		globalIndex := cfg.ProcessIndex*cfg.Workers + local
		var log *logrus.Logger
		if cfg.Report {
			log = logrus.New()
		}
		clusterCfg := allocator.ClusterConfig{
			Index:     globalIndex,
			Addresses: cfg.Addresses,
			Logger:    log,
		}
		builders[local] = func() (allocator.Peer, error) {
			return allocator.Dial(context.Background(), clusterCfg)
		}
	}
	return builders, nil
}
