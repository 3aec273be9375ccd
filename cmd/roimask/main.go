package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/bioimagetools/roimask/component"
	"github.com/bioimagetools/roimask/mask"
)

const helpMessage = `
roimask inspects and transforms boolean region masks built from point lists

	usage: roimask [options] <command>

Commands:

	stats <pointfile>
	components <pointfile> [<pointfile> ...]
	merge <union|intersection|xor|subtraction> <pointfile> <pointfile>
	scale <up|down> <pointfile>

Point files hold one "x y z" voxel per line; '#' starts a comment.
`

var (
	showHelp   bool
	verbose    bool
	configPath string
)

func init() {
	flag.BoolVar(&showHelp, "h", false, "Show help message")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&verbose, "verbose", false, "Show debug-level log messages")
	flag.StringVar(&configPath, "config", "", "Path to TOML config file")
}

func main() {
	flag.Parse()
	if showHelp || flag.NArg() == 0 {
		fmt.Print(helpMessage, "\n")
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}
	if verbose {
		mask.SetLogMode(mask.DebugMode)
	}
	config, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	config.Log.SetLogger()

	// Ctrl-C cancels long scans cooperatively.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := flag.Args()
	switch args[0] {
	case "stats":
		err = doStats(ctx, args[1:])
	case "components":
		err = doComponents(ctx, config, args[1:])
	case "merge":
		err = doMerge(ctx, args[1:])
	case "scale":
		err = doScale(ctx, config, args[1:])
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadMask(path string) (*mask.Mask3d, error) {
	pts, err := ReadPoints(path)
	if err != nil {
		return nil, err
	}
	m := mask.Mask3dFromPoints(pts)
	mask.Debugf("loaded %s from %q\n", m, path)
	return m, nil
}

func doStats(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("stats expects one point file")
	}
	m, err := loadMask(args[0])
	if err != nil {
		return err
	}
	surface, err := m.ContourLength(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", args[0])
	fmt.Printf("  points:    %s\n", humanize.Comma(int64(m.NumPoints())))
	fmt.Printf("  bounds:    %s\n", m.Bounds)
	fmt.Printf("  optimized: %s\n", m.OptimizedBounds())
	fmt.Printf("  surface:   %.1f\n", surface)
	return nil
}

func doComponents(ctx context.Context, config *Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("components expects at least one point file")
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, path := range args {
		path := path
		g.Go(func() error {
			m, err := loadMask(path)
			if err != nil {
				return err
			}
			components, err := component.Extract(ctx, m, &config.Labeler)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s: %d components\n", path, len(components))
			for i, c := range components {
				fmt.Printf("  #%d: %s points in %s\n", i+1,
					humanize.Comma(int64(c.NumPoints())), c.Bounds)
			}
			return nil
		})
	}
	return g.Wait()
}

var opNames = map[string]mask.Op{
	"union":        mask.OpUnion,
	"intersection": mask.OpIntersect,
	"xor":          mask.OpExclusiveUnion,
	"subtraction":  mask.OpSubtract,
}

func doMerge(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("merge expects an operator and at least two point files")
	}
	op, found := opNames[args[0]]
	if !found {
		return fmt.Errorf("unknown operator %q", args[0])
	}
	masks := make([]*mask.Mask3d, len(args)-1)
	for i, path := range args[1:] {
		m, err := loadMask(path)
		if err != nil {
			return err
		}
		masks[i] = m
	}
	result, err := mask.Merge(ctx, masks, op)
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Println("empty result")
		return nil
	}
	result.OptimizeBounds()
	fmt.Printf("%s of %d masks: %s\n", op, len(masks), result)
	return nil
}

func doScale(ctx context.Context, config *Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("scale expects a direction (up|down) and a point file")
	}
	m, err := loadMask(args[1])
	if err != nil {
		return err
	}
	var result *mask.Mask3d
	switch args[0] {
	case "up":
		result, err = m.Upscale(ctx)
	case "down":
		result, err = m.Downscale(ctx, config.DownscaleThreshold)
	default:
		return fmt.Errorf("unknown scale direction %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Printf("scaled %s -> %s\n", m, result)
	return nil
}
