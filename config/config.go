// Package config loads the TOML configuration of a stack and its link.
package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/link/channel"
	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/types"
)

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid config")

// Config is the root of the configuration file
type Config struct {
	Stack   Stack   `toml:"stack"`
	Link    Link    `toml:"link"`
	Logging Logging `toml:"logging"`
}

// Stack configures the stack
type Stack struct {
	// MboxSize is the capacity of every mailbox. It must be a power of two
	MboxSize int `toml:"mbox-size"`

	// PoolSize is the size of the packet pool in bytes
	PoolSize int `toml:"pool-size"`

	// ErrorReports makes sends wait for their completion report
	ErrorReports bool `toml:"error-reports"`
}

// Link configures the channel endpoint
type Link struct {
	MTU              uint32   `toml:"mtu"`
	Loopback         bool     `toml:"loopback"`
	QueueSize        int      `toml:"queue-size"`
	PacketsPerSecond float64  `toml:"packets-per-second"`
	Sniff            bool     `toml:"sniff"`
	Addresses        []string `toml:"addresses"`
}

// Logging configures logrus
type Logging struct {
	Level string `toml:"level"`
}

// Default returns the configuration used for keys missing from a file
func Default() *Config {
	return &Config{
		Stack: Stack{
			MboxSize:     stack.DefaultMboxSize,
			PoolSize:     stack.DefaultPoolSize,
			ErrorReports: true,
		},
		Link: Link{
			MTU:       channel.DefaultMTU,
			Loopback:  true,
			QueueSize: channel.DefaultQueueSize,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads and validates the file at path
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := check(md, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a TOML document
func Parse(data string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := check(md, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// check rejects keys that map to no field, then validates cfg
func check(md toml.MetaData, cfg *Config) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}
	return cfg.Validate()
}

// Validate checks the values of c
func (c *Config) Validate() error {
	if !mbox.IsPowerOfTwo(c.Stack.MboxSize) {
		return fmt.Errorf("%w: stack.mbox-size %d is not a power of two", ErrInvalid, c.Stack.MboxSize)
	}
	if c.Stack.PoolSize <= 0 {
		return fmt.Errorf("%w: stack.pool-size must be positive", ErrInvalid)
	}
	if c.Link.MTU < 1280 {
		return fmt.Errorf("%w: link.mtu %d is below the IPv6 minimum", ErrInvalid, c.Link.MTU)
	}
	if c.Link.QueueSize <= 0 {
		return fmt.Errorf("%w: link.queue-size must be positive", ErrInvalid)
	}
	if c.Link.PacketsPerSecond < 0 {
		return fmt.Errorf("%w: link.packets-per-second must not be negative", ErrInvalid)
	}
	if _, err := c.addresses(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalid, err)
	}
	return nil
}

func (c *Config) addresses() ([]types.Address, error) {
	addrs := make([]types.Address, 0, len(c.Link.Addresses))
	for _, s := range c.Link.Addresses {
		ip := net.ParseIP(s)
		if ip == nil || ip.To4() != nil {
			return nil, fmt.Errorf("%w: link.addresses: %q is not an IPv6 address", ErrInvalid, s)
		}
		addrs = append(addrs, types.Address(ip.To16()))
	}
	return addrs, nil
}

// Apply installs the logging configuration
func (c *Config) Apply() {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// StackOptions returns the options for stack.New
func (c *Config) StackOptions() stack.Options {
	return stack.Options{
		MboxSize:     c.Stack.MboxSize,
		PoolSize:     c.Stack.PoolSize,
		ErrorReports: c.Stack.ErrorReports,
	}
}

// ChannelOptions returns the options for channel.New. c must be valid
func (c *Config) ChannelOptions() channel.Options {
	addrs, _ := c.addresses()
	return channel.Options{
		MTU:              c.Link.MTU,
		Loopback:         c.Link.Loopback,
		QueueSize:        c.Link.QueueSize,
		PacketsPerSecond: c.Link.PacketsPerSecond,
		Sniff:            c.Link.Sniff,
		Addresses:        addrs,
	}
}
