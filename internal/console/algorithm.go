package console

import "github.com/bc-dunia/threadviz/internal/types"

// AlgorithmView pairs the algorithm last reported by the agent with one the
// operator just selected. The optimistic value is empty when unset.
type AlgorithmView struct {
	Confirmed  types.AlgorithmID
	Optimistic types.AlgorithmID
}

// Display returns the optimistic algorithm when set, else the confirmed one.
func (v AlgorithmView) Display() types.AlgorithmID {
	if v.Optimistic != "" {
		return v.Optimistic
	}
	return v.Confirmed
}

// WithOptimistic records an operator selection the agent has accepted but
// no snapshot has reported yet.
func (v AlgorithmView) WithOptimistic(id types.AlgorithmID) AlgorithmView {
	v.Optimistic = id
	return v
}

// Reconcile adopts the snapshot's algorithm and drops any optimistic value.
// A nil snapshot leaves the view unchanged.
func Reconcile(v AlgorithmView, snap *types.StatsSnapshot) AlgorithmView {
	if snap == nil {
		return v
	}
	return AlgorithmView{Confirmed: snap.Algorithm}
}
