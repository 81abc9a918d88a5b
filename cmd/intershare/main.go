// Command intershare is the CLI entrypoint, adapted from the teacher's
// cmd/jend/main.go (hand-rolled flag parsing driving send/receive/history)
// to spf13/cobra subcommands driving this SDK's dialer, listener, and share
// session, with a bubbletea/lipgloss progress screen for interactive runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/LeopoldLabs/InterShareSDK/internal/config"
	"github.com/LeopoldLabs/InterShareSDK/internal/discovery"
	"github.com/LeopoldLabs/InterShareSDK/internal/history"
	"github.com/LeopoldLabs/InterShareSDK/internal/inbound"
	"github.com/LeopoldLabs/InterShareSDK/internal/netengine"
	"github.com/LeopoldLabs/InterShareSDK/internal/outbound"
	"github.com/LeopoldLabs/InterShareSDK/internal/secutls"
	"github.com/LeopoldLabs/InterShareSDK/internal/ui"
	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "intershare",
		Short: "Peer-to-peer file and clipboard sharing over LAN and BLE",
	}
	root.AddCommand(newServeCmd(), newSendCmd(), newHistoryCmd(), newDiscoverCmd())
	return root
}

func selfDevice(cfg *config.Config) wire.Device {
	version := uint32(wire.ProtocolVersion)
	return wire.Device{ID: uuid.NewString(), Name: cfg.DeviceName, ProtocolVersion: &version}
}

func newServeCmd() *cobra.Command {
	var headless bool
	var downloadDir string
	var autoAccept bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Listen for inbound shares",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if downloadDir == "" {
				downloadDir = cfg.DownloadDir
			}

			cert, err := secutls.GenerateReceiverCertificate()
			if err != nil {
				return fmt.Errorf("generate certificate: %w", err)
			}

			self := selfDevice(cfg)

			if cfg.TCPPort != 0 {
				netengine.PreferredPorts = []int{cfg.TCPPort}
			}
			listener := &netengine.Listener{Cert: cert}
			listener.OnShare = func(stream *secutls.EncryptedStream, req wire.Request) {
				handleInbound(stream, req, downloadDir, autoAccept, headless)
			}

			port, err := listener.Start()
			if err != nil {
				return fmt.Errorf("bind listener: %w", err)
			}
			fmt.Printf("Listening on TCP port %d as %q\n", port, self.Name)

			if cfg.BLEEnabled {
				// BLE advertising (discovery.Server.Start) needs a real
				// tinygo.org/x/bluetooth adapter, which only exists on a
				// host with a BLE radio; skip it rather than fail serve.
				fmt.Println("BLE discovery enabled in config but no adapter bound; advertising over BLE is skipped.")
			}

			ctx, cancel := signalContext()
			defer cancel()

			mdnsInfo := wire.DeviceConnectionInfo{
				Device: self,
				TCP:    &wire.TCPConnectionInfo{Hostname: "", Port: uint16(port)},
			}
			stopMDNS, err := discovery.StartMDNSAdvertising(mdnsInfo)
			if err != nil {
				fmt.Fprintln(os.Stderr, "mdns: advertising disabled:", err)
			} else {
				defer stopMDNS()
			}

			serveErr := make(chan error, 1)
			go func() { serveErr <- listener.Serve() }()

			select {
			case <-ctx.Done():
				return listener.Stop()
			case err := <-serveErr:
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "omit the receive progress line (serve has no TUI)")
	cmd.Flags().StringVar(&downloadDir, "dir", "", "destination directory for accepted file transfers")
	cmd.Flags().BoolVar(&autoAccept, "auto-accept", false, "skip the incoming-transfer notice (inbound requests are always accepted; there is no prompt)")
	return cmd
}

func handleInbound(stream *secutls.EncryptedStream, req wire.Request, downloadDir string, autoAccept, headless bool) {
	rr := inbound.New(stream, req, inbound.StateObserver{
		OnReceiving: func(fraction float64) {
			if !headless {
				fmt.Printf("\rReceiving... %3.0f%%", fraction*100)
			}
		},
		OnFinished: func(paths []string) {
			fmt.Printf("\nSaved %d item(s) to %s\n", len(paths), downloadDir)
			logInbound(req, history.StatusFinished)
		},
		OnCancelled: func() { logInbound(req, history.StatusCancelled) },
	})

	if rr.IntentType() == inbound.IntentClipboard {
		content := rr.ClipboardIntent().Content
		fmt.Printf("Received clipboard text: %s\n", content)
		rr.Accept(downloadDir)
		return
	}

	if !autoAccept {
		fmt.Printf("Incoming file transfer (%d files). Accepting automatically; there is no interactive prompt.\n", rr.FileTransferIntent().FileCount)
	}

	if _, err := rr.Accept(downloadDir); err != nil {
		fmt.Fprintln(os.Stderr, "accept failed:", err)
	}
}

func logInbound(req wire.Request, status history.Status) {
	entry := history.Entry{Direction: history.DirectionReceived, Status: status}
	if req.Device != nil {
		entry.PeerID = req.Device.ID
		entry.PeerName = req.Device.Name
	}
	if req.Intent != nil {
		if req.Intent.Clipboard != nil {
			entry.IsClipboard = true
		}
		if req.Intent.Files != nil {
			entry.FileCount = req.Intent.Files.FileCount
			entry.FileSize = req.Intent.Files.FileSize
			if req.Intent.Files.FileName != nil {
				entry.FileName = *req.Intent.Files.FileName
			}
		}
	}
	if err := history.Append(entry); err != nil {
		fmt.Fprintln(os.Stderr, "history: append failed:", err)
	}
}

func newSendCmd() *cobra.Command {
	var host string
	var port uint16
	var textContent string
	var headless bool

	cmd := &cobra.Command{
		Use:   "send [paths...]",
		Short: "Send files or --text to a peer reachable by TCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" || port == 0 {
				return fmt.Errorf("send requires --host and --port (discovery-driven dialing happens via 'serve'-side BLE advertising)")
			}
			isText := textContent != ""
			if !isText && len(args) == 0 {
				return fmt.Errorf("provide file paths or --text")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			self := selfDevice(cfg)

			registry := discovery.NewRegistry()
			peer := wire.Device{ID: uuid.NewString(), Name: host}
			registry.HandleDiscoveryMessage(wire.DeviceDiscoveryMessage{
				ConnectionInfo: &wire.DeviceConnectionInfo{
					Device: peer,
					TCP:    &wire.TCPConnectionInfo{Hostname: host, Port: port},
				},
			}, "")

			dialer := &netengine.Dialer{Registry: registry, Rendezvous: discovery.NewRendezvous()}

			var payload outbound.Payload
			if isText {
				payload.Text = &outbound.TextPayload{Content: textContent}
			} else {
				payload.Files = &outbound.FilePayload{Paths: args}
			}

			session, err := outbound.NewSession(dialer, self, payload)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			if headless {
				return runSendHeadless(ctx, session, peer)
			}
			return runSendTUI(ctx, session, peer)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "peer TCP hostname or IP")
	cmd.Flags().Uint16Var(&port, "port", 0, "peer TCP port")
	cmd.Flags().StringVar(&textContent, "text", "", "send inline clipboard text instead of files")
	cmd.Flags().BoolVar(&headless, "headless", false, "print status instead of rendering a TUI")
	return cmd
}

func runSendHeadless(ctx context.Context, session *outbound.ShareSession, peer wire.Device) error {
	err := session.SendTo(ctx, peer, outbound.SessionObserver{
		OnConnecting:   func() { fmt.Println("Connecting...") },
		OnRequesting:   func() { fmt.Println("Requesting transfer...") },
		OnTransferring: func(f float64) { fmt.Printf("\rTransferring... %3.0f%%", f*100) },
		OnDeclined:     func() { fmt.Println("\nDeclined by peer.") },
		OnFinished:     func() { fmt.Println("\nDone.") },
		OnCancelled:    func() { fmt.Println("\nCancelled.") },
	})
	status := history.StatusFinished
	if err != nil {
		status = history.StatusCancelled
	}
	_ = history.Append(history.Entry{
		Direction: history.DirectionSent,
		PeerID:    peer.ID,
		PeerName:  peer.Name,
		Status:    status,
	})
	return err
}

func runSendTUI(ctx context.Context, session *outbound.ShareSession, peer wire.Device) error {
	model := ui.NewModel(ui.RoleSender, peer.Name, session.RequestID)
	program := tea.NewProgram(model)

	go func() {
		err := session.SendTo(ctx, peer, outbound.SessionObserver{
			OnConnecting: func() { program.Send(ui.StatusMsg("Connecting...")) },
			OnRequesting: func() { program.Send(ui.StatusMsg("Requesting...")) },
			OnMediumUpdate: func(m netengine.ConnectionMedium) {
				if m == netengine.MediumWiFi {
					program.Send(ui.MediumMsg("WiFi"))
				} else {
					program.Send(ui.MediumMsg("BLE"))
				}
			},
			OnTransferring: func(f float64) { program.Send(ui.ProgressMsg{Fraction: f}) },
			OnDeclined:     func() { program.Send(ui.DeclinedMsg{}) },
			OnFinished:     func() { program.Send(ui.DoneMsg{}) },
			OnCancelled:    func() { program.Send(ui.CancelledMsg{}) },
		})
		if err != nil {
			program.Send(ui.ErrorMsg(err))
		}
	}()

	_, err := program.Run()
	return err
}

func newDiscoverCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List peers seen over mDNS for a fixed window",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := discovery.NewRegistry()

			ctx, cancel := context.WithTimeout(context.Background(), duration)
			defer cancel()

			browseErr := make(chan error, 1)
			go func() { browseErr <- discovery.BrowseMDNS(ctx, registry) }()

			select {
			case <-ctx.Done():
			case err := <-browseErr:
				if err != nil {
					return fmt.Errorf("mdns browse: %w", err)
				}
			}

			for _, info := range registry.Snapshot() {
				medium := "LAN"
				if info.BLE != nil {
					medium = "BLE"
				}
				fmt.Printf("%-20s  %-10s  %s\n", info.Device.Name, medium, info.Device.ID)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "timeout", 5*time.Second, "how long to listen before printing results")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the transfer history log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clear {
				path, err := history.LogPath()
				if err != nil {
					return err
				}
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return err
				}
				fmt.Println("History cleared.")
				return nil
			}

			entries, err := history.Load()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-8s  %-8s  %s  %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Direction, e.Status, e.PeerName, e.FileName)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "delete the history log")
	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}
