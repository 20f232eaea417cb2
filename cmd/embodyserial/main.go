// Command embodyserial is a small CLI front end over pkg/facade: get a
// single attribute or all of them, set the device clock or trace level,
// list files, or download one by name. It mirrors the flag set of the
// original Python package's argparse-based cli.py, re-expressed with the
// standard flag package to match this module's teacher.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aidee-health/embody-serial-go/pkg/facade"
	"github.com/aidee-health/embody-serial-go/pkg/link"
	"github.com/aidee-health/embody-serial-go/pkg/serialio"
)

var (
	device        = flag.String("device", "", "Serial device path (leave empty to auto-detect)")
	baudRate      = flag.Int("baud", serialio.DefaultBaudRate, "Serial baud rate")
	get           = flag.String("get", "", fmt.Sprintf("Get a single attribute (%v)", attributeNames()))
	getAll        = flag.Bool("get-all", false, "Get all attributes")
	setTime       = flag.Bool("set-time", false, "Set device clock to now")
	setTraceLevel = flag.Int("set-trace-level", -1, "Set device trace verbosity level")
	listFiles     = flag.Bool("list-files", false, "List all files on the device")
	downloadFile  = flag.String("download-file", "", "Download the named file to a local temp path")
	timeout       = flag.Duration("timeout", facade.DefaultTimeout, "Per-request timeout")
	logLevel      = flag.String("log-level", "WARNING", "Log level name (CRITICAL, WARNING, INFO, DEBUG); INFO and DEBUG add a startup line, other log output is not filtered")
)

// attributeGetters mirrors the original cli.py's get_attributes_dict: the
// set of single-attribute get operations --get accepts, each mapped to the
// Facade method that implements it.
var attributeGetters = map[string]func(*facade.Facade) (string, error){
	"serialno": func(f *facade.Facade) (string, error) { return f.GetSerialNo() },
	"ble_mac":  func(f *facade.Facade) (string, error) { return f.GetBluetoothMAC() },
	"model":    func(f *facade.Facade) (string, error) { return f.GetModel() },
	"vendor":   func(f *facade.Facade) (string, error) { return f.GetVendor() },
	"firmware": func(f *facade.Facade) (string, error) { return f.GetFirmwareVersion() },
	"time": func(f *facade.Facade) (string, error) {
		t, err := f.GetCurrentTime()
		if err != nil {
			return "", err
		}
		return t.Format(time.RFC3339), nil
	},
	"battery": func(f *facade.Facade) (string, error) {
		v, err := f.GetBatteryLevel()
		return fmt.Sprintf("%d%%", v), err
	},
	"hr": func(f *facade.Facade) (string, error) {
		v, err := f.GetHeartRate()
		return fmt.Sprintf("%d bpm", v), err
	},
	"chargestate": func(f *facade.Facade) (string, error) {
		v, err := f.GetChargeState()
		return fmt.Sprintf("%v", v), err
	},
	"temperature": func(f *facade.Facade) (string, error) {
		v, err := f.GetTemperature()
		return fmt.Sprintf("%.1f", v), err
	},
}

func attributeNames() []string {
	names := make([]string, 0, len(attributeGetters))
	for k := range attributeGetters {
		names = append(names, k)
	}
	return names
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	logger := log.New(os.Stderr, "", log.Flags())
	if *logLevel == "DEBUG" || *logLevel == "INFO" {
		logger.Printf("embodyserial cli starting, log level %s", *logLevel)
	}

	var sl *serialio.SerialLink
	var err error
	if *device != "" {
		sl, err = serialio.Open(*device, *baudRate, logger)
	} else {
		sl, err = serialio.Detect(serialio.AutoDetectOptions{BaudRate: *baudRate, Logger: logger})
	}
	if err != nil {
		log.Fatalf("embodyserial: connect: %v", err)
	}

	core := link.New(sl, link.WithLogger(logger))
	defer core.Shutdown()
	f := facade.New(core, facade.WithTimeout(*timeout))

	switch {
	case *get != "":
		runGet(f, *get)
	case *getAll:
		runGetAll(f)
	case *setTime:
		runSetTime(f)
	case *setTraceLevel >= 0:
		runSetTraceLevel(f, uint8(*setTraceLevel))
	case *listFiles:
		runListFiles(f)
	case *downloadFile != "":
		runDownloadFile(f, *downloadFile)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runGet(f *facade.Facade, attr string) {
	getter, ok := attributeGetters[attr]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown attribute %q\n", attr)
		os.Exit(1)
	}
	v, err := getter(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(v)
}

func runGetAll(f *facade.Facade) {
	for _, name := range attributeNames() {
		v, err := attributeGetters[name](f)
		if err != nil {
			fmt.Printf("%s: error: %v\n", name, err)
			continue
		}
		fmt.Printf("%s: %s\n", name, v)
	}
}

func runSetTime(f *facade.Facade) {
	if err := f.SetCurrentTimestamp(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	t, err := f.GetCurrentTime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading back time: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("New device time is: %s\n", t.Format(time.RFC3339))
}

func runSetTraceLevel(f *facade.Facade, level uint8) {
	if err := f.SetTraceLevel(level); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Trace level set: %d\n", level)
}

func runListFiles(f *facade.Facade) {
	files, err := f.ListFiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("[]")
		return
	}
	for _, file := range files {
		fmt.Printf("%s (%dKB)\n", file.Name, (file.Size+512)/1024)
	}
}

func runDownloadFile(f *facade.Facade, name string) {
	files, err := f.ListFiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var size int
	var found bool
	for _, file := range files {
		if file.Name == name {
			size = int(file.Size)
			found = true
			break
		}
	}
	if !found {
		fmt.Printf("Unknown file name %s\n", name)
		os.Exit(1)
	}

	start := time.Now()
	path, err := f.DownloadFile(name, size, *timeout, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start).Seconds()
	kbps := 0.0
	if elapsed > 0 {
		kbps = float64(size) / 1024 / elapsed
	}
	fmt.Printf("%s downloaded to %s (%.2fKB) - (%.2fKB/s)\n", name, path, float64(size)/1024, kbps)
}
