package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrockway/nixie-clock/control/buttons"
	"github.com/jrockway/nixie-clock/control/clock"
	"github.com/jrockway/nixie-clock/control/display"
	"github.com/jrockway/nixie-clock/control/gpio"
	"github.com/jrockway/nixie-clock/control/rtc"
	"github.com/jrockway/nixie-clock/control/screen"
	"github.com/jrockway/nixie-clock/control/settings"
	"github.com/jrockway/periphflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "golang.org/x/net/trace"
	"periph.io/x/host/v3"
)

var (
	bind = flag.String("bind", ":8080", "address to bind for debug/metrics server")
	spi  string
)

func main() {
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	periphflag.SPIDevVar(&spi, "spi", "", "spi bus that the display is on")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	conn, err := screen.Open(spi, cfg.SPISpeed)
	if err != nil {
		log.Fatalf("init screen: %v", err)
	}
	tubes := screen.New(conn)
	if err := tubes.Exercise(context.Background(), 250*time.Millisecond); err != nil {
		log.Printf("exercise tubes: %v", err)
	}
	tubes.Blank(display.All)

	store := settings.NewDiskvStore(cfg.StorePath)
	s, err := settings.Load(store)
	if err != nil {
		log.Printf("load settings: %v; running on defaults", err)
	}

	start := rtc.Epoch
	if cfg.SeedFromHost {
		start = rtc.FromTime(time.Now().In(cfg.Location))
	}
	tk := rtc.New(start)
	log.Printf("starting at %v", tk.Now())

	reader, err := gpio.NewRealReader(cfg.Chip, cfg.PinSet, cfg.PinAdv)
	if err != nil {
		log.Fatalf("open buttons: %v", err)
	}

	classifier := new(buttons.Classifier)
	coord := display.NewCoordinator(tubes)
	cl := clock.New(tk, classifier, coord, store, s)

	ctx, cancel := context.WithCancel(context.Background())

	var power *gpio.PowerWatcher
	if cfg.PinPower >= 0 {
		power, err = gpio.WatchPower(cfg.Chip, cfg.PinPower, func(failing bool) { cl.Power.Post(failing) })
		if err != nil {
			log.Fatalf("watch power: %v", err)
		}
	}

	http.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/display.png", http.StatusFound)
	})
	http.Handle("/display.png", tubes)
	http.Handle("/metrics", promhttp.Handler())

	httpDoneCh := make(chan error)
	httpServer := http.Server{Addr: *bind}
	go func() {
		log.Printf("http server listening on %s", httpServer.Addr)
		err := httpServer.ListenAndServe()
		select {
		case httpDoneCh <- err:
		case <-ctx.Done():
		}
		close(httpDoneCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Any of these exiting before the context is cancelled is fatal.
	loopDoneCh := make(chan error)
	loop := func(name string, f func(context.Context) error) {
		go func() {
			err := f(ctx)
			select {
			case loopDoneCh <- err:
				log.Printf("%s loop exited", name)
			case <-ctx.Done():
			}
		}()
	}
	loop("timekeeper", func(ctx context.Context) error { return tk.Run(ctx, cl.Phases) })
	loop("buttons", (&buttons.Sampler{
		Classifier: classifier,
		Reader:     reader,
		Notify:     func() { cl.Buttons.Post(struct{}{}) },
	}).Run)
	loop("display", func(ctx context.Context) error { return coord.Run(ctx, cfg.Subtick) })
	loop("clock", cl.Run)

	httpAlive := true
	select {
	case err := <-httpDoneCh:
		log.Printf("http server died: %v", err)
		httpAlive = false
	case err := <-loopDoneCh:
		log.Printf("clock loop died: %v", err)
	case <-sigCh:
		log.Printf("interrupt")
	}
	signal.Stop(sigCh)
	cancel()
	coord.Pause()
	tubes.Blank(display.All)
	if power != nil {
		if err := power.Close(); err != nil {
			log.Printf("%v", err)
		}
	}
	if err := reader.Close(); err != nil {
		log.Printf("close buttons: %v", err)
	}
	cl.Close()
	tubes.Close()
	if err := conn.Close(); err != nil {
		log.Printf("close screen: %v", err)
	}
	if httpAlive {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	os.Exit(1)
}
