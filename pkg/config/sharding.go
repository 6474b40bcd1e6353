package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pg-sharding/spqrkernel/pkg/keygen"
	"github.com/pg-sharding/spqrkernel/pkg/models/shrule"
	"github.com/pg-sharding/spqrkernel/pkg/models/spqrerror"
	"github.com/pg-sharding/spqrkernel/pkg/shardalgo"
	"github.com/pg-sharding/spqrkernel/pkg/spqrlog"
	"golang.org/x/xerrors"
)

type ShardingCfg struct {
	LogLevel      string `json:"log_level" toml:"log_level" yaml:"log_level"`
	PrettyLogging bool   `json:"pretty_logging" toml:"pretty_logging" yaml:"pretty_logging"`
	LogFile       string `json:"log_file" toml:"log_file" yaml:"log_file"`

	// Dialect selects the pagination decorator: postgres, mysql, oracle or sqlserver.
	Dialect string `json:"dialect" toml:"dialect" yaml:"dialect"`

	DataSources       []string `json:"datasources" toml:"datasources" yaml:"datasources"`
	DefaultDataSource string   `json:"default_datasource" toml:"default_datasource" yaml:"default_datasource"`

	Tables          []TableCfg                 `json:"tables" toml:"tables" yaml:"tables"`
	BindingTables   [][]string                 `json:"binding_tables" toml:"binding_tables" yaml:"binding_tables"`
	BroadcastTables []string                   `json:"broadcast_tables" toml:"broadcast_tables" yaml:"broadcast_tables"`
	Algorithms      map[string]AlgorithmCfg    `json:"algorithms" toml:"algorithms" yaml:"algorithms"`
	KeyGenerators   map[string]KeyGeneratorCfg `json:"key_generators" toml:"key_generators" yaml:"key_generators"`
	Statistics      StatisticsCfg              `json:"statistics" toml:"statistics" yaml:"statistics"`

	// Connections maps datasource names to connection strings used by exec.
	Connections  map[string]string `json:"connections" toml:"connections" yaml:"connections"`
	JaegerConfig JaegerCfg         `json:"jaeger" toml:"jaeger" yaml:"jaeger"`

	// RouteLogMinDuration is in milliseconds, negative disables slow route logging.
	RouteLogMinDuration int64 `json:"route_log_min_duration" toml:"route_log_min_duration" yaml:"route_log_min_duration"`
}

type TableCfg struct {
	LogicTable       string          `json:"logic_table" toml:"logic_table" yaml:"logic_table"`
	ActualDataNodes  string          `json:"actual_data_nodes" toml:"actual_data_nodes" yaml:"actual_data_nodes"`
	DatabaseStrategy *StrategyCfg    `json:"database_strategy" toml:"database_strategy" yaml:"database_strategy"`
	TableStrategy    *StrategyCfg    `json:"table_strategy" toml:"table_strategy" yaml:"table_strategy"`
	KeyGenerate      *KeyGenerateCfg `json:"key_generate" toml:"key_generate" yaml:"key_generate"`
}

type StrategyCfg struct {
	Columns   []string `json:"columns" toml:"columns" yaml:"columns"`
	Algorithm string   `json:"algorithm" toml:"algorithm" yaml:"algorithm"`
}

type KeyGenerateCfg struct {
	Column    string `json:"column" toml:"column" yaml:"column"`
	Generator string `json:"generator" toml:"generator" yaml:"generator"`
}

type AlgorithmCfg struct {
	Type  string            `json:"type" toml:"type" yaml:"type"`
	Props map[string]string `json:"props" toml:"props" yaml:"props"`
}

type KeyGeneratorCfg struct {
	Type  string            `json:"type" toml:"type" yaml:"type"`
	Props map[string]string `json:"props" toml:"props" yaml:"props"`
}

type JaegerCfg struct {
	JaegerUrl string `json:"jaeger_url" toml:"jaeger_url" yaml:"jaeger_url"`
}

type StatisticsCfg struct {
	Quantiles []float64 `json:"quantiles" toml:"quantiles" yaml:"quantiles"`
}

// LoadShardingCfg loads the sharding configuration from the specified file path.
// The format is chosen by the file suffix: .yaml, .toml or .json.
func LoadShardingCfg(cfgPath string) (*ShardingCfg, error) {
	cfg := ShardingCfg{RouteLogMinDuration: -1}
	file, err := os.Open(cfgPath)
	if err != nil {
		return nil, xerrors.Errorf("could not open file \"%s\": %w", cfgPath, err)
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			spqrlog.Zero.Error().Err(err).Msg("failed to close config file")
		}
	}(file)

	if err := initConfig(file, &cfg); err != nil {
		return nil, xerrors.Errorf("decode sharding config: %w", err)
	}

	configBytes, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	spqrlog.Zero.Debug().Str("config", string(configBytes)).Msg("running config")

	return &cfg, nil
}

func (c *ShardingCfg) RouteLogThreshold() time.Duration {
	if c.RouteLogMinDuration < 0 {
		return -1
	}
	return time.Duration(c.RouteLogMinDuration) * time.Millisecond
}

/*
* Build instantiates algorithms and key generators and assembles a
* validated sharding rule. Every named algorithm is created once and shared
* by all strategies referring to it.
 */
func (c *ShardingCfg) Build(registry *shardalgo.Registry) (*shrule.ShardingRule, error) {
	if registry == nil {
		registry = shardalgo.DefaultRegistry
	}

	algs := make(map[string]shardalgo.Algorithm, len(c.Algorithms))
	for name, acfg := range c.Algorithms {
		alg, err := registry.New(acfg.Type, shardalgo.Props(acfg.Props))
		if err != nil {
			return nil, xerrors.Errorf("algorithm %s: %w", name, err)
		}
		algs[name] = alg
	}

	gens := make(map[string]shrule.KeyGenerator, len(c.KeyGenerators))
	for name, gcfg := range c.KeyGenerators {
		gen, err := keygen.New(gcfg.Type, name, gcfg.Props)
		if err != nil {
			return nil, xerrors.Errorf("key generator %s: %w", name, err)
		}
		gens[name] = gen
	}

	rule := shrule.NewShardingRule(c.DataSources, c.DefaultDataSource)
	for _, tcfg := range c.Tables {
		tr, err := buildTable(tcfg, algs, gens)
		if err != nil {
			return nil, xerrors.Errorf("table %s: %w", tcfg.LogicTable, err)
		}
		if err := rule.AddTable(tr); err != nil {
			return nil, err
		}
	}
	for _, g := range c.BindingTables {
		rule.AddBindingGroup(shrule.BindingGroup(g))
	}
	for _, b := range c.BroadcastTables {
		rule.AddBroadcastTable(b)
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	spqrlog.Zero.Info().
		Strs("datasources", rule.DataSources).
		Int("tables", len(c.Tables)).
		Int("binding groups", len(c.BindingTables)).
		Int("broadcast tables", len(c.BroadcastTables)).
		Msg("sharding rule built")
	return rule, nil
}

func buildTable(tcfg TableCfg, algs map[string]shardalgo.Algorithm, gens map[string]shrule.KeyGenerator) (*shrule.TableRule, error) {
	dns, err := shrule.ParseDataNodes(tcfg.ActualDataNodes)
	if err != nil {
		return nil, err
	}
	tr := &shrule.TableRule{
		LogicTable: tcfg.LogicTable,
		DataNodes:  dns,
	}
	if tr.DatabaseStrategy, err = buildStrategy(tcfg.DatabaseStrategy, algs); err != nil {
		return nil, err
	}
	if tr.TableStrategy, err = buildStrategy(tcfg.TableStrategy, algs); err != nil {
		return nil, err
	}
	if kg := tcfg.KeyGenerate; kg != nil {
		gen, ok := gens[kg.Generator]
		if !ok {
			return nil, spqrerror.Newf(spqrerror.SPQR_INVALID_RULE, "unknown key generator %q", kg.Generator)
		}
		tr.KeyGenerate = &shrule.KeyGenerateRule{Column: kg.Column, Generator: gen}
	}
	return tr, nil
}

func buildStrategy(scfg *StrategyCfg, algs map[string]shardalgo.Algorithm) (*shrule.StrategyRule, error) {
	if scfg == nil {
		return nil, nil
	}
	alg, ok := algs[scfg.Algorithm]
	if !ok {
		return nil, spqrerror.Newf(spqrerror.SPQR_UNKNOWN_ALGORITHM, "unknown algorithm name %q", scfg.Algorithm)
	}
	return &shrule.StrategyRule{
		Columns:       scfg.Columns,
		AlgorithmName: scfg.Algorithm,
		Algorithm:     alg,
	}, nil
}
