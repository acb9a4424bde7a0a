package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dimdasci/agent-primitives/pkg/action"
	"github.com/dimdasci/agent-primitives/pkg/api"
	"github.com/dimdasci/agent-primitives/pkg/config"
	"github.com/dimdasci/agent-primitives/pkg/driver"
	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/eval"
	"github.com/dimdasci/agent-primitives/pkg/loop"
	apotel "github.com/dimdasci/agent-primitives/pkg/otel"
	"github.com/dimdasci/agent-primitives/pkg/store"
	"github.com/dimdasci/agent-primitives/pkg/store/memstore"
	"github.com/dimdasci/agent-primitives/pkg/store/sqlstore"
	"github.com/dimdasci/agent-primitives/pkg/thread"

	_ "github.com/dimdasci/agent-primitives/pkg/driver/anthropic"
	_ "github.com/dimdasci/agent-primitives/pkg/driver/gemini"
	_ "github.com/dimdasci/agent-primitives/pkg/driver/ollama"
	_ "github.com/dimdasci/agent-primitives/pkg/driver/openai"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var (
		showVersion bool
		configPath  string
		query       string
		dataset     string
		serve       bool
		addr        string
		provider    string
		traces      bool
	)

	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&configPath, "config", getEnv("AP_CONFIG", "config.yaml"), "config file path")
	flag.StringVar(&query, "q", "", "run one query and print the transcript")
	flag.StringVar(&dataset, "eval", "", "run a YAML evaluation dataset")
	flag.BoolVar(&serve, "serve", false, "serve the HTTP API")
	flag.StringVar(&addr, "addr", getEnv("AP_ADDR", ":8080"), "http listen address")
	flag.StringVar(&provider, "provider", "", "use a single named provider instead of the fallback order")
	flag.BoolVar(&traces, "traces", false, "print spans to stdout")
	flag.Parse()

	if showVersion {
		fmt.Printf("ap %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}

	ctx := context.Background()
	shutdown, err := apotel.Init(ctx, apotel.Config{ServiceVersion: version, UseStdout: traces})
	if err != nil {
		fatal("otel init: %v", err)
	}
	defer func() { _ = shutdown(ctx) }()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("%v", err)
	}

	providers := cfg.FallbackOrder()
	if provider != "" {
		providers = []string{provider}
	}
	if len(providers) == 0 {
		fatal("no providers configured; set fallback or pass -provider")
	}

	pool := driver.NewPool(cfg.DriverConfigs())
	lp := loop.New(pool, providers, cfg.Iterations())

	st, closeStore, err := openStore(ctx)
	if err != nil {
		fatal("store: %v", err)
	}
	defer closeStore()

	switch {
	case dataset != "":
		runEval(ctx, st, lp, dataset)
	case query != "":
		runQuery(ctx, st, lp, query)
	case serve:
		runServer(st, lp, addr)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// openStore picks SQL persistence when DATABASE_URL is set and falls back to
// the in-memory store otherwise.
func openStore(ctx context.Context) (store.ThreadStore, func(), error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return memstore.New(), func() {}, nil
	}
	s, err := sqlstore.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

// runQuery drives one conversation on the terminal, prompting on stdin when
// the agent asks for more information.
func runQuery(ctx context.Context, st store.ThreadStore, lp *loop.Loop, query string) {
	th, err := st.Create(ctx, thread.UserInput(query))
	if err != nil {
		fatal("create thread: %v", err)
	}
	reader := bufio.NewReader(os.Stdin)

	for {
		out := lp.Run(ctx, th)
		if err := st.Save(ctx, th); err != nil {
			fatal("save thread: %v", err)
		}
		switch out.Status {
		case loop.StatusDone:
			last, _ := th.LastEvent()
			if msg, ok := action.TerminalMessage(last.Data); ok {
				fmt.Println(msg)
			} else {
				fmt.Printf("%v\n", last.Data)
			}
			if out.FinalIntent != action.IntentRequestMoreInformation {
				return
			}
			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				return
			}
			th.Append(thread.HumanResponse(line))
		case loop.StatusAborted:
			fmt.Fprintf(os.Stderr, "gave up after %d iterations\n", out.Iterations)
			os.Exit(1)
		case loop.StatusError:
			if errmodel.IsCategory(out.Err, errmodel.CategoryConfig) {
				fatal("%v\ncheck the provider configuration in the config file", out.Err)
			}
			fatal("%v", out.Err)
		}
	}
}

func runEval(ctx context.Context, st store.ThreadStore, lp *loop.Loop, dataset string) {
	cases, err := eval.LoadDataset(dataset)
	if err != nil {
		fatal("%v", err)
	}
	runner := &eval.Runner{Store: st, Loop: lp}
	report, err := runner.Run(ctx, cases)
	if err != nil {
		fatal("eval: %v", err)
	}
	fmt.Print(report.Summary())
	if report.Passed() != len(report.Results) {
		os.Exit(1)
	}
}

func runServer(st store.ThreadStore, lp *loop.Loop, addr string) {
	srv := &http.Server{Addr: addr, Handler: api.NewServer(st, lp).Handler()}
	fmt.Printf("listening on %s\n", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fatal("server error: %v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func getEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
