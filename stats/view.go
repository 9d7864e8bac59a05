package stats

import (
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// AggregationKind identifies how a view summarises observations.
type AggregationKind int

const (
	AggregationDistribution AggregationKind = iota + 1
)

func (k AggregationKind) String() string {
	switch k {
	case AggregationDistribution:
		return "distribution"
	default:
		return fmt.Sprintf("AggregationKind(%d)", int(k))
	}
}

// Aggregation describes the summary a view keeps for its measure.
type Aggregation struct {
	Kind       AggregationKind
	Boundaries []float64
}

// Distribution is a bucketed histogram with explicit, strictly increasing
// lower bucket boundaries.
func Distribution(bounds ...float64) Aggregation {
	return Aggregation{Kind: AggregationDistribution, Boundaries: bounds}
}

// View aggregates one measure into timeseries partitioned by TagKeys.
type View struct {
	Name        string
	Description string
	Measure     *Measure
	TagKeys     []TagKey
	Aggregation Aggregation
}

func (v *View) validate() error {
	if v.Name == "" {
		return fmt.Errorf("view name cannot be empty")
	}
	if v.Measure == nil {
		return fmt.Errorf("view %q has no measure", v.Name)
	}
	if v.Aggregation.Kind != AggregationDistribution {
		return fmt.Errorf("view %q: unsupported aggregation %s", v.Name, v.Aggregation.Kind)
	}
	for i := 1; i < len(v.Aggregation.Boundaries); i++ {
		if v.Aggregation.Boundaries[i] <= v.Aggregation.Boundaries[i-1] {
			return fmt.Errorf("view %q: bucket boundaries must be strictly increasing", v.Name)
		}
	}
	seen := make(map[string]struct{}, len(v.TagKeys))
	for _, k := range v.TagKeys {
		if k.name == "" {
			return fmt.Errorf("view %q has an empty tag key", v.Name)
		}
		if _, dup := seen[k.name]; dup {
			return fmt.Errorf("view %q: duplicate tag key %q", v.Name, k.name)
		}
		seen[k.name] = struct{}{}
	}
	return nil
}

// clone returns a deep copy so registered views never share slices with callers
func (v *View) clone() *View {
	c := *v
	c.TagKeys = slices.Clone(v.TagKeys)
	c.Aggregation.Boundaries = slices.Clone(v.Aggregation.Boundaries)
	return &c
}

func (v *View) equal(o *View) bool {
	return v.Name == o.Name &&
		v.Description == o.Description &&
		v.Measure == o.Measure &&
		v.Aggregation.Kind == o.Aggregation.Kind &&
		slices.Equal(v.Aggregation.Boundaries, o.Aggregation.Boundaries) &&
		slices.Equal(v.TagKeys, o.TagKeys)
}

// tagKeyNames returns the declared keys, sorted
func (v *View) tagKeyNames() []string {
	names := make([]string, len(v.TagKeys))
	for i, k := range v.TagKeys {
		names[i] = k.name
	}
	slices.Sort(names)
	return names
}

func (v *View) sdkView() sdkmetric.View {
	keys := make([]attribute.Key, len(v.TagKeys))
	for i, k := range v.TagKeys {
		keys[i] = attribute.Key(k.name)
	}
	return sdkmetric.NewView(
		sdkmetric.Instrument{
			Name: v.Measure.name,
			Kind: sdkmetric.InstrumentKindHistogram,
		},
		sdkmetric.Stream{
			Name:        v.Name,
			Description: v.Description,
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: slices.Clone(v.Aggregation.Boundaries),
			},
			AttributeFilter: attribute.NewAllowKeysFilter(keys...),
		},
	)
}
