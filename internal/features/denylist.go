package features

// DenylistChannels is the channel count the denylist was computed for.
const DenylistChannels = 8

// Denylist holds the statistics that proved numerically unstable when the
// classifier was trained: the Langevin fixed point and the eight index mass
// quantiles, for each of the eight channels. The q=0.5 step is skipped since
// the catalog has no median mass quantile. It is generated once at start-up
// and never recomputed.
var Denylist = buildDenylist(DenylistChannels)

func buildDenylist(channels int) []string {
	names := make([]string, 0, channels*9)
	for ch := 0; ch < channels; ch++ {
		names = append(names, FeatureName(ch, "max_langevin_fixed_point", Params{{Key: "m", Value: 3}, {Key: "r", Value: 30}}))
		for j := 1; j <= 9; j++ {
			q := float64(j) * 0.1
			if FormatFloat(q) == "0.5" {
				continue
			}
			names = append(names, FeatureName(ch, "index_mass_quantile", p1("q", q)))
		}
	}
	return names
}
