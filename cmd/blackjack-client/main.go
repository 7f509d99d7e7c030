// Command blackjack-client is a line-oriented console client for the
// blackjack server, mainly useful for poking at a running instance.
//
// Commands are typed as `NAME [arg ...]`; the name is padded with underscores
// to the fixed token width, so `LOGIN alice` becomes `BJ:LOGIN___:alice`.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/blackjack-server/internal/client"
	"github.com/cyberinferno/blackjack-server/internal/protocol"
)

var serverAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:          "blackjack-client",
		Short:        "Interactive console client for the blackjack server",
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.Flags().StringVar(&serverAddr, "server", "127.0.0.1:10000", "server address")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	done := make(chan struct{})

	c := client.New(client.DefaultConfig(serverAddr))
	c.OnMessage(func(msg protocol.Message) {
		if !msg.Valid {
			fmt.Println("<- (malformed frame)")
			return
		}
		// Answer heartbeats so an idle console is not dropped.
		if msg.Command == protocol.CmdPing {
			_ = c.Send(protocol.CmdPong)
		}
		fmt.Printf("<- %s %s\n", msg.Command, strings.Join(msg.Args, " "))
	})
	c.OnDisconnect(func(err error) {
		if err != nil {
			fmt.Printf("disconnected: %v\n", err)
		}
		close(done)
	})

	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Close()
	fmt.Printf("connected to %s\n", serverAddr)

	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	for {
		select {
		case <-done:
			return nil
		case line, ok := <-input:
			if !ok {
				return nil
			}
			cmd, args, err := parseInput(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if cmd == "" {
				continue
			}
			if err := c.Send(cmd, args...); err != nil {
				return err
			}
		}
	}
}

// parseInput turns `NAME [arg ...]` into a padded command token and its
// arguments.
func parseInput(line string) (protocol.Command, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, nil
	}

	name := strings.ToUpper(fields[0])
	if len(name) > protocol.CommandLength {
		return "", nil, fmt.Errorf("command %q is longer than %d characters", name, protocol.CommandLength)
	}
	for len(name) < protocol.CommandLength {
		name += "_"
	}

	return protocol.Command(name), fields[1:], nil
}
