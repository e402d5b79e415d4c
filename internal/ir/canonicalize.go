package ir

// Canonicalize renumbers the inference variables of g by first appearance
// (self, trait args, expected; pre-order within each type). It returns the
// canonical goal and, for each canonical index, the variable it replaced.
func Canonicalize(g Goal) (Goal, []TyInfer) {
	index := map[int]int{}
	var vars []TyInfer
	for _, t := range GoalTys(g) {
		WalkTy(t, func(n Ty) bool {
			if v, ok := n.(TyInfer); ok {
				if _, seen := index[v.Index]; !seen {
					index[v.Index] = len(vars)
					vars = append(vars, v)
				}
			}
			return true
		})
	}
	out := MapGoal(g, func(t Ty) Ty {
		return MapTy(t, func(n Ty) (Ty, bool) {
			if v, ok := n.(TyInfer); ok {
				return TyInfer{Index: index[v.Index], Kind: v.Kind}, true
			}
			return nil, false
		})
	})
	return out, vars
}
