package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagConfig         string
	flagAddr           string
	flagWorkDir        string
	flagOutputDir      string
	flagFraming        string
	flagFFmpeg         string
	flagVideoFormat    string
	flagMuxTimeout     time.Duration
	flagKeepInputs     bool
	flagMaxConnections int
	flagMaxMessageSize int64
	flagResultCache    int
	flagHelp           bool
	flagVersion        bool
)

func init() {
	flag.StringVarP(&flagConfig, "config", "c", "", "JSON config file")
	flag.StringVarP(&flagAddr, "addr", "a", ":8000", "HTTP listen address")
	flag.StringVarP(&flagWorkDir, "work-dir", "w", "", "Directory for mux inputs")
	flag.StringVarP(&flagOutputDir, "output-dir", "o", "", "Directory for muxed artifacts")
	flag.StringVarP(&flagFraming, "framing", "f", "explicit", "Inbound framing")
	flag.StringVar(&flagFFmpeg, "ffmpeg", "ffmpeg", "Encoder binary")
	flag.StringVar(&flagVideoFormat, "video-format", "h264", "Encoding of the device video stream")
	flag.DurationVar(&flagMuxTimeout, "mux-timeout", 2*time.Minute, "Upper bound on one mux")
	flag.BoolVar(&flagKeepInputs, "keep-inputs", false, "Keep mux inputs after success")
	flag.IntVar(&flagMaxConnections, "max-connections", 64, "Maximum HTTP connections")
	flag.Int64Var(&flagMaxMessageSize, "max-message-size", 16<<20, "Largest websocket message or upload, in bytes")
	flag.IntVar(&flagResultCache, "result-cache-size", 128, "Number of cut results kept for lookup")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Encounter capture for bedside and wearable devices

Usage: alohacapd [OPTION]...

Devices stream to ws://HOST/ws. A GET on /badge-scan/TOKEN cuts everything
captured so far into one MP4.

Configuration:
  -c, --config=FILE        JSON config file; flags override its values

Network:
  -a, --addr=ADDR          HTTP listen address (default: :8000)
      --max-connections=N  Maximum simultaneous connections (default: 64)
      --max-message-size=N Largest websocket message or upload, in bytes
                           (default: 16777216)

Capture:
  -f, --framing=MODE       explicit or alternating (default: explicit)
  -w, --work-dir=DIR       Directory for mux inputs (default: $TMPDIR/alohacap)
  -o, --output-dir=DIR     Directory for artifacts (default: work dir)
      --video-format=FMT   Device video encoding, h264 or mjpeg (default: h264)
      --result-cache-size=N
                           Cut results kept for /cuts lookup (default: 128)

Encoder:
      --ffmpeg=FILE        Encoder binary (default: ffmpeg)
      --mux-timeout=DUR    Upper bound on one mux (default: 2m0s)
      --keep-inputs        Keep WAV and H.264 inputs after a successful mux

Miscellaneous:
  -h, --help               Prints this help message and exits
  -v, --version            Prints version information and exits

Logging is controlled by LOGLEVEL, e.g. LOGLEVEL=debug,mux=trace

Please report bugs to: aloha@lanikailabs.com`

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	//         _         _
	//   __ _ | |  ___  | |__    __ _   ___  __ _  _ __
	//  / _` || | / _ \ | '_ \  / _` | / __|/ _` || '_ \
	// | (_| || || (_) || | | || (_| || (__| (_| || |_) |
	//  \__,_||_| \___/ |_| |_| \__,_| \___|\__,_|| .__/
	//                                            |_|

	// Line 1
	r.Printf("        ")
	y.Printf(" _ ")
	b.Printf("       ")
	y.Println(" _     ")

	// Line 2
	r.Printf("   __ _ ")
	y.Printf("| |")
	b.Printf("  ___  ")
	y.Printf("| |__  ")
	r.Printf("  __ _ ")
	b.Printf("  ___ ")
	r.Printf(" __ _ ")
	y.Println(" _ __  ")

	// Line 3
	r.Printf("  / _` |")
	y.Printf("| |")
	b.Printf(" / _ \\ ")
	y.Printf("| '_ \\ ")
	r.Printf(" / _` |")
	b.Printf(" / __|")
	r.Printf("/ _` |")
	y.Println("| '_ \\ ")

	// Line 4
	r.Printf(" | (_| |")
	y.Printf("| |")
	b.Printf("| (_) |")
	y.Printf("| | | |")
	r.Printf("| (_| |")
	b.Printf("| (__")
	r.Printf("| (_| |")
	y.Println("| |_) |")

	// Line 5
	r.Printf("  \\__,_|")
	y.Printf("|_|")
	b.Printf(" \\___/ ")
	y.Printf("|_| |_|")
	r.Printf(" \\__,_|")
	b.Printf(" \\___|")
	r.Printf("\\__,_|")
	y.Println("| .__/ ")

	// Line 6
	fmt.Printf("%44s", "")
	y.Println("|_|    ")

	fmt.Println(helpString)
}
