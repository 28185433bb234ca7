//go:build linux || darwin || freebsd || netbsd

package main

import (
	"fmt"
	"github.com/ghjm/meshbridge/internal/version"
	"github.com/ghjm/meshbridge/pkg/config"
	"github.com/ghjm/meshbridge/pkg/mesh/loopstack"
	"github.com/ghjm/meshbridge/pkg/netif"
	"github.com/ghjm/meshbridge/pkg/netif/fdset"
	"github.com/ghjm/meshbridge/pkg/x/checkroot"
	"github.com/ghjm/meshbridge/pkg/x/exit_handler"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"os"
)

func errHalt(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}

var configFile string
var logLevel string
var rootCmd = &cobra.Command{
	Use:     "meshbridge",
	Args:    cobra.NoArgs,
	Version: version.Version(),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := &config.Config{}
		if configFile != "" {
			var err error
			cfg, err = config.LoadConfig(configFile)
			if err != nil {
				errHalt(err)
			}
		}
		if logLevel != "" {
			switch logLevel {
			case "error":
				log.SetLevel(log.ErrorLevel)
			case "warning":
				log.SetLevel(log.WarnLevel)
			case "info":
				log.SetLevel(log.InfoLevel)
			case "debug":
				log.SetLevel(log.DebugLevel)
			default:
				errHalt(fmt.Errorf("invalid log level"))
			}
		}
		if !checkroot.CheckNetAdmin() {
			errHalt(fmt.Errorf("must be root or have net admin capability"))
		}
		stack := loopstack.New()
		n, err := netif.New(stack, netif.Options{
			InterfaceName: cfg.Interface.Name,
			DevicePath:    cfg.Interface.Device,
			LogPackets:    cfg.LogPackets,
		})
		if err != nil {
			errHalt(err)
		}
		exit_handler.AddExitFunc(n.Close)
		log.Infof("bridging %s", n.Name())
		err = stack.SetEnabled(true)
		if err != nil {
			errHalt(err)
		}
		runLoop(n)
	},
}

// runLoop is the select loop the bridge is dispatched from.  The bridge
// registers its descriptors each pass; everything else happens inside
// Process.
func runLoop(n *netif.Netif) {
	for {
		var read, write, errs fdset.Set
		maxFd := 0
		n.UpdateFdSet(&read, &errs, &maxFd)
		_, err := fdset.Select(maxFd+1, &read, &write, &errs, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			log.Fatalf("select failed: %s", err)
		}
		n.Process(&read, &errs)
	}
}

func main() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Config file name")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Set log level (error/warning/info/debug)")
	err := rootCmd.Execute()
	if err != nil {
		errHalt(err)
	}
	exit_handler.RunExitFuncs()
}
