// Command calcctl talks to a calcsrv instance over native gRPC.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fixkme/calcsrv/auth"
	"github.com/fixkme/calcsrv/pb"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/prototext"
)

type globalOptions struct {
	addr    string
	timeout time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:          "calcctl",
		Short:        "Client for the calculator gRPC server",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.addr, "addr", "[::1]:50051", "server address")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "per call timeout")

	for _, op := range []string{"add", "subtract", "multiply", "divide"} {
		root.AddCommand(newCalcCmd(opts, op))
	}
	root.AddCommand(newCountCmd(opts), newTokenCmd(), newSchemaCmd())
	return root
}

func dial(opts *globalOptions) (*grpc.ClientConn, error) {
	return grpc.NewClient(opts.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// 操作数可以是 -4 这样的负数, pflag 会把它当成短 flag, 所以计算命令自己解析参数
func newCalcCmd(opts *globalOptions, op string) *cobra.Command {
	return &cobra.Command{
		Use:                op + " A B",
		Short:              "Call Calculator." + op,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			args, err := calcOperands(cmd, args)
			if err != nil {
				return err
			}
			if args == nil {
				return cmd.Help()
			}
			a, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad A: %w", err)
			}
			b, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("bad B: %w", err)
			}
			conn, err := dial(opts)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			rsp, err := calcCall(pb.NewCalculatorClient(conn), op)(ctx, &pb.CalculationRequest{A: a, B: b})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rsp.GetResult())
			return nil
		},
	}
}

// calcOperands 取出两个操作数, 只有 "--" 开头的长 flag 按全局 flag 处理.
// 返回 nil, nil 表示请求了帮助.
func calcOperands(cmd *cobra.Command, args []string) ([]string, error) {
	flags := cmd.InheritedFlags()
	var operands []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			operands = append(operands, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "--") {
			operands = append(operands, arg)
			continue
		}
		name, value, hasValue := strings.Cut(arg[2:], "=")
		if name == "help" {
			return nil, nil
		}
		if flags.Lookup(name) == nil {
			return nil, fmt.Errorf("unknown flag: --%s", name)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("flag needs an argument: --%s", name)
			}
			i++
			value = args[i]
		}
		if err := flags.Set(name, value); err != nil {
			return nil, fmt.Errorf("invalid argument %q for --%s: %w", value, name, err)
		}
	}
	if len(operands) != 2 {
		return nil, fmt.Errorf("accepts 2 arg(s), received %d", len(operands))
	}
	return operands, nil
}

func calcCall(c pb.CalculatorClient, op string) func(context.Context, *pb.CalculationRequest, ...grpc.CallOption) (*pb.CalculationResponse, error) {
	switch op {
	case "add":
		return c.Add
	case "subtract":
		return c.Subtract
	case "multiply":
		return c.Multiply
	default:
		return c.Divide
	}
}

func newCountCmd(opts *globalOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Call Admin.GetRequestCount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial(opts)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			if token != "" {
				ctx = metadata.AppendToOutgoingContext(ctx, auth.MetadataKey, token)
			}
			rsp, err := pb.NewAdminClient(conn).GetRequestCount(ctx, &pb.GetCountRequest{})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rsp.GetCount())
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", auth.DefaultToken, "value sent as authorization metadata")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a token for a server running with auth_mode=jwt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			token, err := auth.NewJWTValidator(secret, ttl).Generate(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "shared HS256 secret (auth_jwt_secret)")
	cmd.Flags().StringVar(&subject, "subject", "calcctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	var binary bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the embedded descriptor set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := pb.Load()
			if err != nil {
				return err
			}
			if binary {
				raw, err := s.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			}
			text, err := prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s.Set)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(text)
			return err
		},
	}
	cmd.Flags().BoolVar(&binary, "binary", false, "write the binary FileDescriptorSet (same as protoc -o)")
	return cmd
}
