// Package main provides the devrt diagnostics CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/devrt/internal/backend"
	"github.com/born-ml/devrt/internal/config"
	"github.com/born-ml/devrt/internal/place"
	"github.com/born-ml/devrt/internal/platform"
)

const version = "v0.1.0-dev"

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()
	defer klog.Flush()

	if err := run(context.Background(), os.Stdout, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "devrt:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "devrt %s - heterogeneous device runtime diagnostics\n\n", version)
	fmt.Fprintln(w, "Usage: devrt [klog flags] <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version                 Show version")
	fmt.Fprintln(w, "  targets                 List targets, precisions and layouts")
	fmt.Fprintln(w, "  places                  List every valid place in order, with hashes")
	fmt.Fprintln(w, "  devices [-config file]  Open the platform and list backends")
}

func run(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		usage(out)
		return nil
	}
	switch args[0] {
	case "version":
		fmt.Fprintf(out, "devrt %s\n", version)
		return nil
	case "targets":
		return printKinds(out)
	case "places":
		return printPlaces(out)
	case "devices":
		return printDevices(ctx, out, args[1:])
	default:
		return errors.Errorf("unknown command %q", args[0])
	}
}

func printKinds(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tVALUE\tNAME")
	for _, t := range place.Targets() {
		fmt.Fprintf(w, "target\t%d\t%s\n", int(t), t)
	}
	for _, p := range place.Precisions() {
		fmt.Fprintf(w, "precision\t%d\t%s\n", int(p), p)
	}
	for _, l := range place.Layouts() {
		fmt.Fprintf(w, "layout\t%d\t%s\n", int(l), l)
	}
	return w.Flush()
}

// validPlaces returns every valid place on device 0, in order.
func validPlaces() []place.Place {
	var out []place.Place
	for _, t := range place.Targets() {
		for _, p := range place.Precisions() {
			for _, l := range place.Layouts() {
				if pl := place.New(t, p, l); pl.IsValid() {
					out = append(out, pl)
				}
			}
		}
	}
	place.SortPlaces(out)
	return out
}

func printPlaces(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLACE\tHASH")
	for _, p := range validPlaces() {
		fmt.Fprintf(w, "%s\t%016x\n", p.DebugString(), p.Hash())
	}
	return w.Flush()
}

func printDevices(ctx context.Context, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("devices", flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("config", "", "YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Defaults()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return err
		}
	}

	reg, err := platform.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			klog.Warningf("devrt: %v", err)
		}
	}()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tBACKEND\tDEVICES\tMAX STREAMS")
	for _, t := range place.Targets() {
		if !t.Concrete() {
			continue
		}
		b := reg.Get(t)
		name := b.Name()
		if backend.IsMissing(b) {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", t, name, b.DeviceCount(), b.MaxStreamCount())
	}
	return w.Flush()
}
