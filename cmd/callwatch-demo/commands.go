package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/avkuznetsov/callwatch/internal/business/facade"
)

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn global tracking on and report the controller's state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		a.monitor.Enable()
		fmt.Println("tracking enabled:", a.monitor.IsEnabled())
		return nil
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn global tracking off",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		a.monitor.Disable()
		fmt.Println("tracking enabled:", a.monitor.IsEnabled())
		return nil
	},
}

var simulateAddr string
var simulateCalls int

func init() {
	simulateCmd.Flags().StringVar(&simulateAddr, "listen", ":8089", "address the demo websocket reporter listens on")
	simulateCmd.Flags().IntVar(&simulateCalls, "calls", 5, "number of synthetic calls to drive through the monitor")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Start the live reporter's websocket server and drive synthetic calls through it",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		a.monitor.Enable()

		server := &http.Server{Addr: simulateAddr, Handler: a.reporter.Handler()}
		go func() {
			a.logger.Info("livereporter listening", "addr", simulateAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("livereporter server exited", "error", err)
			}
		}()
		defer server.Close()

		cm := a.monitor.ForClass("demo.Workflow")
		for i := 0; i < simulateCalls; i++ {
			runSimulatedCall(cm, i)
			time.Sleep(200 * time.Millisecond)
		}

		fmt.Println("drove", simulateCalls, "synthetic calls through the monitor")
		return nil
	},
}

func runSimulatedCall(cm *facade.ClassMonitor, i int) {
	_, ctx := cm.Start(context.Background(), fmt.Sprintf("Step%d", i),
		facade.NewCallBuilder().WithReporterTypes("live").WithParameter("iteration", fmt.Sprint(i)).Build())
	defer ctx.Recover()
	ctx.Log("demo", map[string]string{"message": "working"})
	time.Sleep(10 * time.Millisecond)
}
