// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// colbench drives the search engine over synthetic columns and logs
// wall times.  Usage: colbench [config.toml]
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
	"github.com/matrixorigin/colcore/pkg/container/batch"
	"github.com/matrixorigin/colcore/pkg/container/types"
	"github.com/matrixorigin/colcore/pkg/container/vector"
	"github.com/matrixorigin/colcore/pkg/logutil"
	"github.com/matrixorigin/colcore/pkg/search"
	"github.com/matrixorigin/colcore/pkg/vm/process"
)

type Config struct {
	// PoolCap is the memory pool limit in bytes, zero means unlimited.
	PoolCap     int64 `toml:"pool-cap"`
	Parallelism int   `toml:"parallelism"`
	Rows        int   `toml:"rows"`
	Needles     int   `toml:"needles"`
	Seed        int64 `toml:"seed"`

	Log logutil.LogConfig `toml:"log"`
}

func (c *Config) fillDefaults() {
	if c.Rows == 0 {
		c.Rows = 1 << 20
	}
	if c.Needles == 0 {
		c.Needles = 1 << 14
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
}

func main() {
	var cfg Config
	if len(os.Args) > 1 {
		if _, err := toml.DecodeFile(os.Args[1], &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.fillDefaults()
	logutil.SetupMOLogger(&cfg.Log)

	if err := run(&cfg); err != nil {
		e := moerr.DowncastError(err)
		logutil.Fatal("bench failed",
			zap.Uint16("code", e.ErrorCode()),
			zap.String("cause", e.Display()))
	}
}

func run(cfg *Config) error {
	mp, err := mpool.NewMPool("colbench", cfg.PoolCap, 0)
	if err != nil {
		return err
	}
	proc := process.New(context.Background(), mp, process.WithParallelism(cfg.Parallelism))
	defer proc.Close()

	logger := logutil.Adjust(nil,
		zap.Fields(zap.Int("rows", cfg.Rows), zap.Int("needles", cfg.Needles)))

	rng := rand.New(rand.NewSource(cfg.Seed))

	// sorted haystack for the rank queries
	hayVals := make([]int64, cfg.Rows)
	for i := range hayVals {
		if i == 0 {
			hayVals[i] = int64(rng.Intn(4))
		} else {
			hayVals[i] = hayVals[i-1] + int64(rng.Intn(4))
		}
	}
	hayVec := vector.NewVec(types.T_int64.ToType())
	if err := vector.AppendFixedList(hayVec, hayVals, nil, mp); err != nil {
		return err
	}
	defer hayVec.Free(mp)

	needleVals := make([]int64, cfg.Needles)
	for i := range needleVals {
		needleVals[i] = hayVals[rng.Intn(len(hayVals))]
	}
	needleVec := vector.NewVec(types.T_int64.ToType())
	if err := vector.AppendFixedList(needleVec, needleVals, nil, mp); err != nil {
		return err
	}
	defer needleVec.Free(mp)

	hay := batch.New(nil)
	hay.Vecs = []*vector.Vector{hayVec}
	hay.SetRowCount(cfg.Rows)
	needles := batch.New(nil)
	needles.Vecs = []*vector.Vector{needleVec}
	needles.SetRowCount(cfg.Needles)

	start := time.Now()
	ranks, err := search.LowerBound(proc, hay, needles, nil, nil)
	if err != nil {
		return err
	}
	defer ranks.Free(mp)
	logger.Info("lower_bound", zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	mask, err := search.MultiContains(proc, hayVec, needleVec)
	if err != nil {
		return err
	}
	defer mask.Free(mp)
	found := 0
	for _, hit := range vector.MustFixedCol[bool](mask) {
		if hit {
			found++
		}
	}
	logger.Info("multi_contains",
		zap.Int("hits", found),
		zap.Duration("elapsed", time.Since(start)))

	logger.Info("pool", zap.String("stats", mp.Report()))
	return nil
}
