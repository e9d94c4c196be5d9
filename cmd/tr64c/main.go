// Command tr64c is a TR-064 command-line client: against a single
// gateway URL it discovers devices via SSDP, builds and caches the
// gateway's device/service descriptor tree, lists available actions, and
// invokes one with user-supplied input variables, rendering the result as
// CSV, JSON, or XML. An interactive mode drives the same engine from a
// prompt.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tr64go/tr64c/internal/descriptor"
	"github.com/tr64go/tr64c/internal/session"
	"github.com/tr64go/tr64c/internal/soap"
	"github.com/tr64go/tr64c/internal/ssdp"
	"github.com/tr64go/tr64c/internal/telemetry"
	"github.com/tr64go/tr64c/internal/transport"
)

const version = "tr64c 1.0.0"

const defaultTimeout = 3 * time.Second

// exit codes per the CLI surface: 0 on success, non-zero on any error.
const (
	exitSuccess = 0
	exitUsage   = 1
	exitError   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Stdin))
}

func run(args []string, stdout, stderr *os.File, stdin *os.File) int {
	flags := pflag.NewFlagSet("tr64c", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	cache := flags.StringP("cache", "c", "", "cache file for the descriptor tree")
	format := flags.StringP("format", "f", "CSV", "output format: CSV|JSON|XML")
	help := flags.BoolP("help", "h", false, "show usage and exit")
	interactive := flags.BoolP("interactive", "i", false, "drive the query engine from a prompt")
	list := flags.BoolP("list", "l", false, "list available actions and exit")
	host := flags.StringP("host", "o", "", "gateway URL, e.g. http://fritz.box:49000/tr64desc.xml")
	password := flags.StringP("password", "p", "", "Digest auth password")
	scan := flags.BoolP("scan", "s", false, "discover gateways via SSDP and exit")
	timeoutMS := flags.IntP("timeout", "t", int(defaultTimeout/time.Millisecond), "request timeout in milliseconds")
	user := flags.StringP("user", "u", "", "Digest auth user")
	verbosity := flags.CountP("verbose", "v", "increase log verbosity (repeatable)")
	showVersion := flags.Bool("version", false, "show version and exit")
	flags.Bool("utf8", false, "force UTF-8 terminal encoding (platform-dependent)")

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	if *help {
		fmt.Fprintln(stdout, "usage: tr64c [options] [[<device>/]<service>/<action> [<var=value> ...]]")
		flags.PrintDefaults()
		return exitSuccess
	}
	if *showVersion {
		fmt.Fprintln(stdout, version)
		return exitSuccess
	}

	logger := telemetry.New(*verbosity, stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *scan {
		return runScan(ctx, stdout, logger, time.Duration(*timeoutMS)*time.Millisecond)
	}

	if *host == "" {
		fmt.Fprintln(stderr, "error: -o|--host is required")
		return exitUsage
	}
	if *timeoutMS < int(transport.TimeoutResolution/time.Millisecond) {
		fmt.Fprintln(stderr, "error: -t|--timeout must be at least", transport.TimeoutResolution)
		return exitUsage
	}
	renderFormat, err := soap.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	timeout := time.Duration(*timeoutMS) * time.Millisecond
	tc, err := transport.NewContext(*host, timeout, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	tc.User = *user
	tc.Pass = *password

	if err := tc.Resolve(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	obj, err := descriptor.Build(ctx, tc, tc.Path, *host, descriptor.Options{CachePath: *cache, Logger: logger})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	if *list {
		printActions(stdout, obj)
		return exitSuccess
	}

	invoke := func(ctx context.Context, svc *descriptor.Service, action *descriptor.Action, bindings soap.Bindings) ([]*descriptor.Argument, error) {
		return soap.Invoke(ctx, tc, svc, action, bindings)
	}

	if *interactive {
		s := &session.Session{Object: obj, Format: renderFormat, Out: stdout, Invoke: invoke}
		if err := s.Run(ctx, stdin); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitError
		}
		return exitSuccess
	}

	positional := flags.Args()
	if len(positional) == 0 {
		fmt.Fprintln(stderr, "error: a query path is required unless -i, -l, or -s is given")
		return exitUsage
	}
	return runQuery(ctx, stdout, stderr, obj, invoke, renderFormat, positional)
}

func runQuery(ctx context.Context, stdout, stderr *os.File, obj *descriptor.Object, invoke func(context.Context, *descriptor.Service, *descriptor.Action, soap.Bindings) ([]*descriptor.Argument, error), format soap.Format, positional []string) int {
	devicePrefix, servicePrefix, actionPrefix, err := soap.SplitPath(positional[0])
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	svc, action, err := soap.Select(obj, devicePrefix, servicePrefix, actionPrefix)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	bindings, err := soap.ParseBindings(positional[1:])
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	if _, err := invoke(ctx, svc, action, bindings); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	rendered, err := soap.Render(action, format)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	stdout.Write(rendered)
	fmt.Fprintln(stdout)
	return exitSuccess
}

func printActions(stdout *os.File, obj *descriptor.Object) {
	for _, dev := range obj.Devices {
		for _, svc := range dev.Services {
			for _, act := range svc.Actions {
				fmt.Fprintf(stdout, "%s/%s/%s\n", dev.Name, svc.Name, act.Name)
			}
		}
	}
}

// runScan implements the SSDP discovery contract/§6's -s|--scan: bind on every up, non-
// loopback IPv4 interface and report discovery records as they arrive.
func runScan(ctx context.Context, stdout *os.File, logger interface {
	Warn(msg string, args ...interface{})
}, timeout time.Duration) int {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		var localIP net.IP
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok {
				if v4 := ipnet.IP.To4(); v4 != nil {
					localIP = v4
					break
				}
			}
		}
		if localIP == nil {
			continue
		}

		records, err := ssdp.Discover(ctx, &iface, localIP, timeout)
		if err != nil {
			logger.Warn("ssdp: discovery failed on interface", "interface", iface.Name, "error", err)
			continue
		}
		for _, rec := range records {
			fmt.Fprintf(stdout, "%s\t%s\n", rec.Server, rec.Location)
		}
	}
	return exitSuccess
}
