package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/firestore"

	"blacknight/auth"
	"blacknight/config"
	"blacknight/diff"
	"blacknight/export"
	"blacknight/generator"
	"blacknight/server"
	"blacknight/store"
)

var verbose bool

// requestList collects repeated -modify flags in order.
type requestList []string

func (l *requestList) String() string { return strings.Join(*l, "; ") }

func (l *requestList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	configPath := flag.String("config", "config/config.json", "path to config.json")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	mock := flag.Bool("mock", false, "use the offline mock model instead of llm.provider")
	issueToken := flag.Bool("issue-token", false, "print a signed session token and exit")

	refPath := flag.String("ref", "", "path to the reference material")
	user := flag.String("user", "cli", "user id the article is recorded for")
	org := flag.String("org", "", "organization (promoting entity)")
	role := flag.String("role", "", "role claim for --issue-token")
	project := flag.String("project", "", "project or event name")
	company := flag.String("company", "", "participating company")
	keywords := flag.String("keywords", "", "comma-separated keywords")
	additional := flag.String("additional", "", "additional requirements")
	format := flag.String("format", "txt", "export format: txt, md or html")
	outDir := flag.String("out", ".", "directory the exported article is written to")
	var modifications requestList
	flag.Var(&modifications, "modify", "modification request applied after generation (repeatable)")
	flag.BoolVar(&verbose, "v", false, "enable info logs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *mock {
		cfg.LLM.Provider = "mock"
	}

	if *issueToken {
		issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.TokenTTL())
		if err != nil {
			fatal(err)
		}
		token, err := issuer.Issue(auth.Session{UserID: *user, Organization: *org, Role: *role})
		if err != nil {
			fatal(err)
		}
		fmt.Println(token)
		return
	}

	ctx := context.Background()
	llm, err := buildLLM(cfg)
	if err != nil {
		fatal(err)
	}
	agent, err := generator.NewAgent(llm)
	if err != nil {
		fatal(err)
	}
	articles, closeStore, err := buildStore(ctx, cfg.Store)
	if err != nil {
		fatal(err)
	}
	defer closeStore()

	// Web server mode
	if *serve {
		issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.TokenTTL())
		if err != nil {
			fatal(fmt.Errorf("auth: %w (set auth.jwt_secret or %s)", err, config.EnvJWTSecret))
		}
		srv, err := server.New(agent, server.Options{
			Issuer:   issuer,
			Articles: articles,
			ControllerOptions: []generator.Option{
				generator.WithTimeout(cfg.Timeout()),
				generator.WithDiffOptions(diffOptions(cfg.Diff)...),
			},
			Logger:  log.Default(),
			Verbose: verbose,
		})
		if err != nil {
			fatal(err)
		}
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		if listen == "" {
			listen = ":8080"
		}
		log.Printf("Starting web server on %s", listen)
		if err := http.ListenAndServe(listen, srv.Routes()); err != nil {
			fatal(err)
		}
		return
	}

	if *refPath == "" {
		fatal(fmt.Errorf("--ref is required (or use --serve / --issue-token)"))
	}
	reference, err := os.ReadFile(*refPath)
	if err != nil {
		fatal(err)
	}
	exportFormat, err := export.ParseFormat(*format)
	if err != nil {
		fatal(err)
	}

	ctrl, err := generator.NewController(agent, auth.Session{UserID: *user, Organization: *org},
		generator.WithTimeout(cfg.Timeout()),
		generator.WithDiffOptions(diffOptions(cfg.Diff)...),
		generator.WithRecorder(articles),
		generator.WithLogger(log.Default(), verbose),
	)
	if err != nil {
		fatal(err)
	}

	req := generator.Requirements{
		Organization: *org,
		Project:      *project,
		Company:      *company,
		Keywords:     *keywords,
		Additional:   *additional,
	}
	log.Printf("[cli] generating organization=%q project=%q ref=%s", req.Organization, req.Project, *refPath)
	v, err := ctrl.Generate(ctx, req, string(reference))
	if err != nil {
		fatal(err)
	}
	log.Printf("[cli] draft ready title=%q", v.Title)

	for _, request := range modifications {
		v, err = ctrl.Modify(ctx, request)
		if err != nil {
			fatal(err)
		}
		st := v.Diff.Stats()
		log.Printf("[cli] version %d ready added=%d removed=%d truncated=%t", v.Index, st.Added, st.Removed, st.Truncated)
	}

	file, err := ctrl.ExportCurrent()
	if err != nil {
		fatal(err)
	}
	doc, err := export.Render(file.Content, file.Filename, exportFormat)
	if err != nil {
		fatal(err)
	}
	path, err := export.WriteFile(*outDir, doc)
	if err != nil {
		fatal(err)
	}
	log.Printf("[cli] export done origin=%s", ctrl.OriginID())
	fmt.Println(path)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func buildLLM(cfg config.Config) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
	}
	switch cfg.LLM.Provider {
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek speaks the OpenAI protocol but needs an explicit endpoint.
		if cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "anthropic":
		return generator.NewAnthropicLLMFromConfig(settings)
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

// buildStore opens the article store; the returned func releases it.
func buildStore(ctx context.Context, cfg config.StoreConfig) (store.ArticleStore, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemoryStore(), noop, nil
	case "postgres":
		s, err := store.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, noop, fmt.Errorf("firestore client: %w", err)
		}
		return store.NewFirestoreStore(client, cfg.Collection), func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("store driver %s not supported", cfg.Driver)
	}
}

func diffOptions(cfg config.DiffConfig) []diff.Option {
	opts := []diff.Option{diff.WithWindow(cfg.Window)}
	if cfg.Granularity == "lines" {
		opts = append(opts, diff.WithGranularity(diff.Lines))
	}
	if cfg.DropOld {
		opts = append(opts, diff.WithSubstitution(diff.SubstituteDropOld))
	}
	if cfg.MaxTokens != 0 {
		opts = append(opts, diff.WithMaxTokens(cfg.MaxTokens))
	}
	return opts
}
