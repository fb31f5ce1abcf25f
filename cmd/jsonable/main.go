package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"reflect"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gravitational/trace"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dhoelle/jsonable"
	jsonencoder "github.com/dhoelle/jsonable/encoders/json"
	msgpackencoder "github.com/dhoelle/jsonable/encoders/msgpack"
	protobufencoder "github.com/dhoelle/jsonable/encoders/protobuf"
)

const EnvVarPrefix = "JSONABLE_"

const (
	formatJSON     = "json"
	formatMsgpack  = "msgpack"
	formatProtobuf = "protobuf"
)

type config struct {
	Input       string
	Format      string
	Exclude     []string
	ExcludeNone bool
	PreserveSet bool
	Strict      bool
	Indent      string
	Debug       bool
}

func parseCLI(args []string) (*config, error) {
	c := &config{}
	app := kingpin.New("jsonable", "Convert YAML documents into JSON, MessagePack or Protocol Buffers.")

	app.Flag("input", "File to read YAML documents from, or - for stdin").
		Short('i').
		Envar(EnvVarPrefix + "INPUT").
		Default("-").
		StringVar(&c.Input)

	app.Flag("format", "Output format").
		Short('f').
		Envar(EnvVarPrefix+"FORMAT").
		Default(formatJSON).
		EnumVar(&c.Format, formatJSON, formatMsgpack, formatProtobuf)

	app.Flag("exclude", "Top-level key to omit from every document").
		Short('x').
		Envar(EnvVarPrefix + "EXCLUDE").
		StringsVar(&c.Exclude)

	app.Flag("exclude-none", "Omit keys whose value is null").
		Envar(EnvVarPrefix + "EXCLUDE_NONE").
		BoolVar(&c.ExcludeNone)

	app.Flag("preserve-set", "Keep YAML !!set values as sets, written as sorted arrays; otherwise they are written as arrays in no particular order").
		Envar(EnvVarPrefix + "PRESERVE_SET").
		BoolVar(&c.PreserveSet)

	app.Flag("strict", "Fail on values that have no encoding rule instead of rendering them as strings").
		Envar(EnvVarPrefix + "STRICT").
		BoolVar(&c.Strict)

	app.Flag("indent", "Indentation for JSON output").
		Envar(EnvVarPrefix + "INDENT").
		StringVar(&c.Indent)

	app.Flag("debug", "Enable debug logging").
		Envar(EnvVarPrefix + "DEBUG").
		BoolVar(&c.Debug)

	if _, err := app.Parse(args); err != nil {
		return nil, trace.Wrap(err, "failed to parse arguments")
	}
	return c, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newSerializer(c *config, logger *zap.Logger) (jsonable.Serializer, error) {
	enc, err := jsonable.New(&jsonable.Config{
		PreserveSet: c.PreserveSet,
		ExcludeNone: c.ExcludeNone,
		Exclude:     c.Exclude,
		Strict:      c.Strict,
		Logger:      logger,
	})
	if err != nil {
		return nil, trace.Wrap(err, "failed to create encoder")
	}

	switch c.Format {
	case formatMsgpack:
		return msgpackencoder.New(enc), nil
	case formatProtobuf:
		return protobufencoder.New(enc), nil
	default:
		return jsonencoder.New(enc).WithIndent(c.Indent), nil
	}
}

func openInput(name string, stdin io.Reader) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, trace.Wrap(err, "failed to open input %q", name)
	}
	return f, nil
}

const setTag = "!!set"

// decodeNode decodes n like yaml.v3 does, except that !!set mappings become
// map[any]struct{} so the encoder treats them as sets.
func decodeNode(n *yaml.Node) (any, error) {
	if !containsSet(n, map[*yaml.Node]bool{}) {
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, trace.Wrap(err)
		}
		return v, nil
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return decodeNode(n.Content[0])
	case yaml.AliasNode:
		return decodeNode(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decodeNode(c)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		if n.ShortTag() == setTag {
			out := make(map[any]struct{}, len(n.Content)/2)
			for i := 0; i < len(n.Content); i += 2 {
				k, err := decodeKey(n.Content[i])
				if err != nil {
					return nil, trace.Wrap(err)
				}
				out[k] = struct{}{}
			}
			return out, nil
		}
		out := make(map[any]any, len(n.Content)/2)
		for i := 0; i < len(n.Content); i += 2 {
			k, err := decodeKey(n.Content[i])
			if err != nil {
				return nil, trace.Wrap(err)
			}
			v, err := decodeNode(n.Content[i+1])
			if err != nil {
				return nil, trace.Wrap(err)
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, trace.BadParameter("unexpected YAML node kind %d at line %d", n.Kind, n.Line)
}

func decodeKey(n *yaml.Node) (any, error) {
	k, err := decodeNode(n)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if k != nil && !reflect.TypeOf(k).Comparable() {
		return nil, trace.BadParameter("unsupported YAML mapping key at line %d", n.Line)
	}
	return k, nil
}

func containsSet(n *yaml.Node, seen map[*yaml.Node]bool) bool {
	if n == nil || seen[n] {
		return false
	}
	seen[n] = true
	if n.Kind == yaml.MappingNode && n.ShortTag() == setTag {
		return true
	}
	if n.Kind == yaml.AliasNode {
		return containsSet(n.Alias, seen)
	}
	for _, c := range n.Content {
		if containsSet(c, seen) {
			return true
		}
	}
	return false
}

func run(c *config, stdin io.Reader, stdout io.Writer, logger *zap.Logger) error {
	serializer, err := newSerializer(c, logger)
	if err != nil {
		return trace.Wrap(err)
	}

	in, err := openInput(c.Input, stdin)
	if err != nil {
		return trace.Wrap(err)
	}
	defer in.Close()

	dec := yaml.NewDecoder(in)
	for n := 0; ; n++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return trace.Wrap(err, "failed to decode YAML document %d", n)
		}
		doc, err := decodeNode(&node)
		if err != nil {
			return trace.Wrap(err, "failed to decode YAML document %d", n)
		}

		out, err := serializer.Encode(doc)
		if err != nil {
			return trace.Wrap(err, "failed to encode document %d as %s", n, c.Format)
		}
		logger.Debug("encoded document", zap.Int("document", n), zap.Int("bytes", len(out)))

		if _, err := stdout.Write(out); err != nil {
			return trace.Wrap(err, "failed to write output")
		}
		if c.Format == formatJSON {
			if _, err := fmt.Fprintln(stdout); err != nil {
				return trace.Wrap(err, "failed to write output")
			}
		}
	}
}

func main() {
	c, err := parseCLI(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := newLogger(c.Debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	jsonable.SetLogger(logger)

	if err := run(c, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("jsonable failed", zap.Error(err))
		os.Exit(1)
	}
}
