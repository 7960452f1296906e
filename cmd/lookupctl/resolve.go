package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sempasha/super-dns-lookup/internal/config"
	"github.com/sempasha/super-dns-lookup/pkg/lookup"
)

type resolveFlags struct {
	configPath string
	family     string
	all        bool
}

func newResolveCmd() *cobra.Command {
	rf := new(resolveFlags)
	cmd := &cobra.Command{
		Use:   "resolve <host>",
		Short: "Resolve a single hostname and print the result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rf, args[0])
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	fs := cmd.Flags()
	fs.StringVarP(&rf.configPath, "config", "c", "", "config file")
	fs.StringVar(&rf.family, "family", "auto", "address family: auto|4|6")
	fs.BoolVar(&rf.all, "all", false, "print every candidate instead of one")
	return cmd
}

func runResolve(rf *resolveFlags, host string) error {
	cfg, err := config.Load(rf.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	built, err := config.Build(cfg)
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}

	ctx := context.Background()
	if err := built.Controller.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer built.Controller.Teardown()

	opts := lookup.Options{All: rf.all}
	switch rf.family {
	case "4":
		opts.Family = lookup.FamilyV4
	case "6":
		opts.Family = lookup.FamilyV6
	case "auto", "":
	default:
		return fmt.Errorf("unknown --family %q", rf.family)
	}

	result, err := built.Controller.Lookup(ctx, host, opts)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, addr := range result.Addresses {
		fmt.Println(addr.String())
	}
	return nil
}
