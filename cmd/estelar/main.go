package main

import (
	"context"
	"fmt"
	"image/png"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/estelar/internal/app"
	"github.com/ayusman/estelar/internal/chime"
	"github.com/ayusman/estelar/internal/config"
	"github.com/ayusman/estelar/internal/phrase"
	"github.com/ayusman/estelar/internal/server"
	"github.com/ayusman/estelar/internal/store"
	"github.com/ayusman/estelar/internal/textmask"
	"github.com/ayusman/estelar/internal/tray"
	"github.com/ayusman/estelar/internal/viewer"
	"github.com/spf13/cobra"
)

var (
	configFile string
	journal    string
	text       string
	particles  int
	seed       uint64
	noCamera   bool
	audio      bool
	addr       string
	staticDir  string
	withTray   bool
	maskOut    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "estelar",
		Short: "a particle universe that spells a secret when you close your hand",
		RunE:  runServe,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath(), "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&journal, "journal", "", "phrase journal database (disabled when empty)")
	rootCmd.PersistentFlags().StringVar(&text, "text", "", "text the particles spell")
	rootCmd.PersistentFlags().IntVar(&particles, "particles", 0, "number of particles")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "random seed (0 for a random universe)")
	rootCmd.PersistentFlags().BoolVar(&noCamera, "no-camera", false, "disable hand tracking")
	rootCmd.PersistentFlags().BoolVar(&audio, "audio", false, "play a chime on reveal")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the universe over HTTP",
		RunE:  runServe,
	}
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&addr, "addr", "", "listen address")
		cmd.Flags().StringVar(&staticDir, "static", "", "serve the page from this directory")
		cmd.Flags().BoolVar(&withTray, "tray", false, "show a system tray menu")
	}

	windowCmd := &cobra.Command{
		Use:   "window",
		Short: "show the universe in a desktop window",
		RunE:  runWindow,
	}

	phraseCmd := &cobra.Command{
		Use:   "phrase",
		Short: "ask for one phrase and print it",
		RunE:  runPhrase,
	}

	maskCmd := &cobra.Command{
		Use:   "mask",
		Short: "rasterize the text and report the sampled points",
		RunE:  runMask,
	}
	maskCmd.Flags().StringVar(&maskOut, "out", "", "write the rasterized canvas as PNG")

	rootCmd.AddCommand(serveCmd, windowCmd, phraseCmd, maskCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the command line on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("journal") {
		cfg.Journal.Path = journal
	}
	if flags.Changed("text") {
		cfg.Text.Text = text
	}
	if flags.Changed("particles") {
		cfg.Field.Particles = particles
	}
	if flags.Changed("seed") {
		cfg.Field.Seed = seed
	}
	if noCamera {
		cfg.Camera.Disabled = true
	}
	if audio {
		cfg.Audio.Enabled = true
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		cfg.Server.Addr = addr
	}
	if flags.Lookup("static") != nil && flags.Changed("static") {
		cfg.Server.StaticDir = staticDir
	}
	if flags.Lookup("tray") != nil && flags.Changed("tray") {
		cfg.Tray.Enabled = withTray
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp builds the session with the optional journal and chime.
func newApp(cfg *config.Config) (*app.App, func(), error) {
	appCfg := app.Config{Settings: cfg}

	if cfg.Journal.Path != "" {
		st, err := store.New(cfg.Journal.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		appCfg.Store = st
		log.Printf("Journaling phrases to %s", cfg.Journal.Path)
	}

	cleanup := func() {}
	if cfg.Audio.Enabled {
		player := chime.NewPlayer(0)
		if err := player.Initialize(); err != nil {
			log.Printf("Audio unavailable: %v", err)
		} else {
			appCfg.Chime = player
			cleanup = player.Close
		}
	}

	if cfg.Phrase.APIKey == "" {
		log.Printf("No API key in %s; reveals will show the fallback phrase", strings.Join(config.APIKeyEnvVars, ", "))
	}

	return app.New(appCfg), cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, cleanup, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer a.Stop()

	if err := a.Start(); err != nil {
		log.Printf("Continuing without hand tracking: %v", err)
	}
	a.StartRenderLoop(cfg.Render.FPS)

	srv := server.New(server.Config{
		App:       a,
		StaticDir: cfg.Server.StaticDir,
		StreamFPS: cfg.Server.StreamFPS,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		errCh <- srv.ListenAndServe(cfg.Server.Addr)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tray.Enabled {
		t := newTray(a, cfg.Server.Addr)
		go func() {
			select {
			case <-ctx.Done():
			case <-errCh:
			}
			t.Quit()
		}()
		t.Run()
	} else {
		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newTray wires the tray menu to the session and keeps it in sync.
func newTray(a *app.App, addr string) *tray.Tray {
	t := tray.New()
	t.SetEnabled(a.IsEnabled())
	t.OnToggle(a.SetEnabled)
	t.OnOpen(func() {
		if err := openBrowser(localURL(addr)); err != nil {
			log.Printf("Failed to open browser: %v", err)
		}
	})

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			st := a.State()
			t.SetEnabled(st.Enabled)
			if st.PhraseVisible {
				t.SetLastPhrase(st.Phrase)
			}
		}
	}()
	return t
}

func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func runWindow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, cleanup, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer a.Stop()

	if err := a.Start(); err != nil {
		log.Printf("Continuing without hand tracking: %v", err)
	}

	g, err := viewer.NewGame(a)
	if err != nil {
		return err
	}
	defer g.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		g.Quit()
	}()

	return viewer.Run(g)
}

func runPhrase(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	svc := phrase.New(cmd.Context(), cfg.Phrase.ServiceConfig())
	res := svc.Phrase(cmd.Context())
	fmt.Println(res.Text)
	if res.Source != phrase.SourceRemote {
		fmt.Fprintf(os.Stderr, "(%s)\n", res.Source)
	}
	return nil
}

func runMask(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := textmask.Options{
		Width:     cfg.Text.Width,
		Height:    cfg.Text.Height,
		FontSize:  cfg.Text.FontSize,
		Stride:    cfg.Text.Stride,
		Scale:     cfg.Text.Scale,
		Threshold: cfg.Text.Threshold,
	}
	img, err := textmask.Rasterize(cfg.Text.Text, opts)
	if err != nil {
		return fmt.Errorf("rasterize %q: %w", cfg.Text.Text, err)
	}
	points := textmask.Sample(img, opts)
	halfW, halfH := textmask.Bounds(opts)

	fmt.Printf("text:   %q\n", cfg.Text.Text)
	fmt.Printf("points: %d (of %d particles)\n", len(points), cfg.Field.Particles)
	fmt.Printf("bounds: ±%.2f x ±%.2f\n", halfW, halfH)

	if maskOut == "" {
		return nil
	}
	f, err := os.Create(maskOut)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("write %s: %w", maskOut, err)
	}
	fmt.Printf("canvas: %s\n", maskOut)
	return nil
}
