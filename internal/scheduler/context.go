package scheduler

// Context carries external scheduling signals. Each field is in [0, 1] and
// uniformly biases the computed weight of every task in a scheduler instance.
type Context struct {
	Urgency         float64
	Importance      float64
	UserExpectation float64
	SystemLoad      float64
}

// ContextPatch describes a partial context update. Nil fields are unchanged.
type ContextPatch struct {
	Urgency         *float64
	Importance      *float64
	UserExpectation *float64
	SystemLoad      *float64
}

// apply merges the patch into the context, clamping each field to [0, 1].
func (p ContextPatch) apply(c *Context) {
	if p.Urgency != nil {
		c.Urgency = clamp01(*p.Urgency)
	}
	if p.Importance != nil {
		c.Importance = clamp01(*p.Importance)
	}
	if p.UserExpectation != nil {
		c.UserExpectation = clamp01(*p.UserExpectation)
	}
	if p.SystemLoad != nil {
		c.SystemLoad = clamp01(*p.SystemLoad)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
