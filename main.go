package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/term"

	"livescribe/audio"
	"livescribe/beep"
	"livescribe/bus"
	"livescribe/config"
	"livescribe/doctor"
	"livescribe/language"
	"livescribe/log"
	"livescribe/recognizer"
	"livescribe/shutdown"
	"livescribe/telemetry"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configFlag := flag.String("config", os.Getenv("LIVESCRIBE_CONFIG"), "YAML config file")
	providerFlag := flag.String("provider", "", "Recognizer: auto, deepgram, openai, groq, azure or fake")
	langFlag := flag.String("lang", "", "Initial language by display name (e.g. Hindi)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Pick the microphone interactively")
	wavFlag := flag.String("wav", "", "Read audio from a 16 kHz mono WAV file instead of the microphone")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	metricsFlag := flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	natsFlag := flag.String("nats", "", "Mirror transcript updates to this NATS server")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, fake recognizer)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	liveFlag := flag.Bool("live", false, "With -doctor, record one session and confirm the text")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	guiFlag := flag.Bool("gui", false, "Open the desktop window instead of the terminal UI")
	quietFlag := flag.Bool("quiet", false, "Disable audible cues")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("livescribe %s\n", version)
		return 0
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	applyFlags(&cfg, *providerFlag, *langFlag, *deviceFlag, *logPathFlag, *metricsFlag, *natsFlag)
	if *testFlag {
		cfg.Provider = "fake"
	}
	if *quietFlag || *testFlag {
		cfg.Beep = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := initLogging(cfg.LogPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	actx, err := openAudio(*wavFlag, *testFlag)
	if err != nil {
		if *wavFlag != "" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		// Left nil: the controller reports the denial and a retry can recover.
		log.Warnf("audio context: %v", err)
	} else {
		defer actx.Close()
	}

	if *testFlag {
		fake := recognizer.NewFake()
		a := &app{
			cfg:        cfg,
			audio:      actx,
			newService: func() (recognizer.Service, error) { return fake, nil },
		}
		return runTestMode(ctx, os.Stdin, os.Stdout, a, fake)
	}

	device, err := pickDevice(actx, cfg.Device, *setupFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using system default\n", err)
	}
	newService := serviceFactory(cfg, actx, device)

	if *doctorFlag {
		return doctor.Run(doctor.Options{
			Out:        os.Stdout,
			In:         os.Stdin,
			Audio:      actx,
			NewService: newService,
			Locale:     localeFor(cfg.Language),
			Live:       *liveFlag,
		})
	}

	a := &app{cfg: cfg, audio: actx, newService: newService}
	cleanup := a.attachObservers(cfg)
	defer cleanup()

	if *guiFlag {
		err = runGUI(ctx, a)
	} else {
		if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: the terminal UI needs a TTY (use -test for scripted input)")
			return 1
		}
		err = runTUI(ctx, a)
	}
	if err != nil {
		log.Errorf("ui: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func applyFlags(cfg *config.Config, provider, lang, device, logPath, metrics, natsURL string) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Provider, provider)
	set(&cfg.Language, lang)
	set(&cfg.Device, device)
	set(&cfg.LogPath, logPath)
	set(&cfg.MetricsBind, metrics)
	set(&cfg.Bus.URL, natsURL)
}

func initLogging(path string) error {
	dir, err := log.ResolveDir(path)
	if err != nil {
		return fmt.Errorf("resolve log directory: %w", err)
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		return err
	}

	crashFile, err := os.OpenFile(log.CrashPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
		crashFile.Close()
	}
	return log.Init()
}

// openAudio picks the capture source: a WAV file played back in real
// time, a synthetic tone for test mode, or the platform audio server.
func openAudio(wav string, test bool) (audio.Context, error) {
	switch {
	case wav != "":
		fc, err := audio.LoadFakeContext(wav, !test)
		if err != nil {
			return nil, err
		}
		return fc, nil
	case test:
		return audio.NewFakeContext(audio.Tone(time.Second, 0.3), false), nil
	default:
		return audio.NewContext()
	}
}

func pickDevice(ctx audio.Context, name string, interactive bool) (*audio.DeviceInfo, error) {
	if ctx == nil {
		return nil, nil
	}
	if name == "" && interactive {
		return audio.SelectDevice(ctx)
	}
	return audio.FindDevice(ctx, name)
}

// attachObservers wires the optional metrics endpoint and event mirror.
// The returned func releases them.
func (a *app) attachObservers(cfg config.Config) func() {
	var closers []func()

	if cfg.Beep {
		a.observers = append(a.observers, beep.NewPlayer())
	}

	if cfg.MetricsBind != "" {
		srv, err := telemetry.Start(cfg.MetricsBind)
		if err != nil {
			log.Warnf("metrics disabled: %v", err)
		} else {
			closers = append(closers, func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					log.Warnf("metrics shutdown: %v", err)
				}
			})
		}
	}
	// Instruments bind to the global meter, which is a no-op without -metrics.
	if rec, err := telemetry.NewRecorder(nil); err != nil {
		log.Warnf("metrics recorder: %v", err)
	} else {
		a.observers = append(a.observers, rec)
	}

	if cfg.Bus.URL != "" {
		pub, err := bus.Connect(cfg.Bus)
		if err != nil {
			log.Warnf("event mirror disabled: %v", err)
		} else {
			a.observers = append(a.observers, pub)
			closers = append(closers, pub.Close)
		}
	}

	return func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func localeFor(name string) string {
	p := language.NewPicker(language.Entries)
	if p.SelectName(name) {
		return p.Selected().Tag
	}
	return ""
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
