//go:build !esp32c3

// Command simboard runs the firmware stack on a development host: fake
// pins and buses behind the real HAL, a YAML board file instead of the
// embedded config, bus traffic logged with zerolog, and a websocket feed
// so a browser can watch the strip and press the button.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"supermini-go/bus"
	"supermini-go/services/hal"
	"supermini-go/services/heartbeat"
	"supermini-go/types"

	_ "supermini-go/services/hal/devices/gpio_button"
	_ "supermini-go/services/hal/devices/gpio_dout"
	_ "supermini-go/services/hal/devices/ledstrip"
)

type boardFile struct {
	Name string          `yaml:"name"`
	HAL  types.HALConfig `yaml:"hal"`
}

func main() {
	var (
		boardPath = flag.String("board", "board.yaml", "board definition file")
		addr      = flag.String("addr", ":8321", "http listen address")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()

	raw, err := os.ReadFile(*boardPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *boardPath).Msg("read board file")
	}
	var board boardFile
	if err := yaml.Unmarshal(raw, &board); err != nil {
		log.Fatal().Err(err).Msg("parse board file")
	}

	b := bus.NewBus(64)
	ctx := context.Background()
	pins := hal.NewFakePins()

	go hal.RunWith(ctx, b.NewConnection("hal"), hal.Options{Pins: pins})
	go heartbeat.Run(ctx, b.NewConnection("hb"), heartbeat.Options{ID: board.Name})
	go logBus(ctx, b, log)

	cfg := b.NewConnection("config")
	cfg.Publish(cfg.NewMessage(bus.T("config", "hal"), board.HAL, true))

	hub := newHub(log, pins)
	go hub.watch(ctx, b)

	http.HandleFunc("/", serveIndex)
	http.HandleFunc("/ws", hub.serveWS)
	log.Info().Str("addr", *addr).Str("board", board.Name).Msg("simboard up")
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal().Err(err).Msg("http server")
	}
}

// logBus mirrors every bus message into the structured log.
func logBus(ctx context.Context, b *bus.Bus, log zerolog.Logger) {
	conn := b.NewConnection("buslog")
	defer conn.Disconnect()
	sub := conn.Subscribe(bus.T("#"))
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.Channel():
			log.Debug().
				Str("topic", m.Topic.String()).
				Bool("retained", m.Retained).
				Interface("payload", m.Payload).
				Msg("bus")
		}
	}
}

var indexPage = []byte(`<!doctype html>
<meta charset="utf-8"><title>simboard</title>
<style>
body{font-family:monospace;background:#111;color:#ddd;padding:2em}
#strip span{display:inline-block;width:28px;height:28px;margin:2px;border-radius:50%;background:#000}
button{font:inherit;padding:.5em 1em;margin-top:1em}
</style>
<h1>simboard</h1>
<div id="strip"></div>
<button id="btn">hold button (GPIO9)</button>
<pre id="log"></pre>
<script>
const ws = new WebSocket("ws://" + location.host + "/ws");
const strip = document.getElementById("strip");
ws.onmessage = e => {
  const m = JSON.parse(e.data);
  if (m.payload && m.payload.pixels) {
    strip.innerHTML = "";
    for (const px of m.payload.pixels) {
      const s = document.createElement("span");
      s.style.background = "rgb(" + px[0] + "," + px[1] + "," + px[2] + ")";
      strip.appendChild(s);
    }
  } else {
    const log = document.getElementById("log");
    log.textContent = (m.topic + " " + JSON.stringify(m.payload) + "\n" + log.textContent).split("\n").slice(0,12).join("\n");
  }
};
const btn = document.getElementById("btn");
const drive = level => ws.send(JSON.stringify({drive:{pin:9,level}}));
btn.onmousedown = () => drive(false); // active-low press
btn.onmouseup = () => drive(true);
</script>`)

func serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexPage)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl := os.Getenv("SIMBOARD_LOG"); lvl != "" {
		if parsed, err := zerolog.ParseLevel(lvl); err == nil {
			zerolog.SetGlobalLevel(parsed)
		}
	}
}
