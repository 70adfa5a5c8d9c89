/*
 *  This file is part of PETA.
 *  Copyright (C) 2025 The PETA Authors.
 *  PETA is free software: you can redistribute it and/or modify
 *  it under the terms of the GNU Affero General Public License as published by
 *  the Free Software Foundation, either version 3 of the License, or
 *  (at your option) any later version.
 *
 *  PETA is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 *  GNU Affero General Public License for more details.
 *
 *  You should have received a copy of the GNU Affero General Public License
 *  along with PETA. If not, see <https://www.gnu.org/licenses/>.
 */

package ipam

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const (
	FlagV6AllocationAttempts = "ipam-v6-allocation-attempts"
	FlagMacAddressRetryMax   = "ipam-mac-retry-max"
	FlagIPAddressRetryMax    = "ipam-ip-retry-max"
	FlagUseSynchronization   = "ipam-use-synchronization"
	FlagDefaultStrategy      = "ipam-default-strategy"
)

// Options configures the allocation engine, mirroring the
// NewOptions/AddFlags/Merge/Validate convention the rest of PETA's
// components use for their own settings.
type Options struct {
	// V6AllocationAttempts bounds how many candidates generateV6 yields
	// before an allocation is abandoned as an IpAddressGenerationFailure.
	V6AllocationAttempts int `json:"v6AllocationAttempts" yaml:"v6AllocationAttempts" mapstructure:"v6AllocationAttempts"`
	// MacAddressRetryMax bounds the MAC reuse-claim retry loop.
	MacAddressRetryMax int `json:"macAddressRetryMax" yaml:"macAddressRetryMax" mapstructure:"macAddressRetryMax"`
	// IPAddressRetryMax bounds the IP reuse-claim retry loop.
	IPAddressRetryMax int `json:"ipAddressRetryMax" yaml:"ipAddressRetryMax" mapstructure:"ipAddressRetryMax"`
	// UseSynchronization gates the in-process advisory mutexes guarding
	// the allocate-MAC, reallocate-IP, and select-subnet critical
	// sections. Off by default; a single-process deployment with one
	// engine instance per database still needs the DB-level claim
	// primitive for correctness, this is only a contention reducer.
	UseSynchronization bool `json:"useSynchronization" yaml:"useSynchronization" mapstructure:"useSynchronization"`
	// DefaultStrategy names the Strategy used when a request doesn't
	// pin one explicitly.
	DefaultStrategy string `json:"defaultStrategy" yaml:"defaultStrategy" mapstructure:"defaultStrategy"`
	// ReuseAfter is how long a deallocated address must sit idle before
	// it becomes eligible for reuse.
	ReuseAfter time.Duration `json:"reuseAfter" yaml:"reuseAfter" mapstructure:"reuseAfter"`
}

func NewOptions() *Options {
	return &Options{
		V6AllocationAttempts: 10,
		MacAddressRetryMax:   20,
		IPAddressRetryMax:    20,
		UseSynchronization:   false,
		DefaultStrategy:      string(StrategyAny),
		ReuseAfter:           2 * time.Minute,
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.V6AllocationAttempts, FlagV6AllocationAttempts, o.V6AllocationAttempts, "maximum v6 candidates tried per allocation")
	fs.IntVar(&o.MacAddressRetryMax, FlagMacAddressRetryMax, o.MacAddressRetryMax, "maximum retries when allocating a MAC address")
	fs.IntVar(&o.IPAddressRetryMax, FlagIPAddressRetryMax, o.IPAddressRetryMax, "maximum retries when allocating an IP address")
	fs.BoolVar(&o.UseSynchronization, FlagUseSynchronization, o.UseSynchronization, "guard allocation critical sections with in-process mutexes")
	fs.StringVar(&o.DefaultStrategy, FlagDefaultStrategy, o.DefaultStrategy, "default allocation strategy (ANY, BOTH, BOTH_REQUIRED)")
}

func (o *Options) Merge(fs *pflag.FlagSet, conf *Options) {
	if conf == nil {
		return
	}
	if f := fs.Lookup(FlagV6AllocationAttempts); f != nil && !f.Changed && conf.V6AllocationAttempts != 0 {
		o.V6AllocationAttempts = conf.V6AllocationAttempts
	}
	if f := fs.Lookup(FlagMacAddressRetryMax); f != nil && !f.Changed && conf.MacAddressRetryMax != 0 {
		o.MacAddressRetryMax = conf.MacAddressRetryMax
	}
	if f := fs.Lookup(FlagIPAddressRetryMax); f != nil && !f.Changed && conf.IPAddressRetryMax != 0 {
		o.IPAddressRetryMax = conf.IPAddressRetryMax
	}
	if f := fs.Lookup(FlagUseSynchronization); f != nil && !f.Changed {
		o.UseSynchronization = conf.UseSynchronization
	}
	if f := fs.Lookup(FlagDefaultStrategy); f != nil && !f.Changed && conf.DefaultStrategy != "" {
		o.DefaultStrategy = conf.DefaultStrategy
	}
	if conf.ReuseAfter != 0 {
		o.ReuseAfter = conf.ReuseAfter
	}
}

func (o *Options) Validate() []error {
	var errs []error
	if o.V6AllocationAttempts <= 0 {
		errs = append(errs, fmt.Errorf("* v6 allocation attempts must be positive"))
	}
	if o.MacAddressRetryMax <= 0 {
		errs = append(errs, fmt.Errorf("* mac address retry max must be positive"))
	}
	if o.IPAddressRetryMax <= 0 {
		errs = append(errs, fmt.Errorf("* ip address retry max must be positive"))
	}
	if _, ok := strategyRegistry[StrategyName(strings.ToUpper(o.DefaultStrategy))]; !ok {
		errs = append(errs, fmt.Errorf("* default strategy %q is not registered", o.DefaultStrategy))
	}
	if o.ReuseAfter < 0 {
		errs = append(errs, fmt.Errorf("* reuse after must not be negative"))
	}
	return errs
}
