package determine

// NoticeKind discriminates how a claim was noticed. The preclusion rule
// differs per kind, so the kind is an explicit tag rather than a pile of
// booleans: a Notice of one kind never reads the flags of another, except
// where the contract says a prior provisional notice carries over.
type NoticeKind string

const (
	// NoticeProvisional is a neutral, non-quantified notice of a claim.
	NoticeProvisional NoticeKind = "provisional"
	// NoticeSpecified is a fully specified and quantified claim.
	NoticeSpecified NoticeKind = "specified"
	// NoticeRequestResponse answers a client-issued request to specify.
	NoticeRequestResponse NoticeKind = "request_response"
)

// Notice holds the timeliness facts needed to decide preclusion for one
// claim. All flags are tri-state; the evaluator refuses to decide on an
// Unset flag its rule path needs.
type Notice struct {
	Kind NoticeKind

	// ProvisionalTimely: the provisional (neutral) notice was given in time.
	ProvisionalTimely Tri
	// SpecifiedTimely: the fully specified claim was presented in time.
	SpecifiedTimely Tri
	// PriorProvisionalTimely: a prior, timely provisional notice exists.
	// Only read for specified claims.
	PriorProvisionalTimely Tri
	// RequestResponseTimely: the answer to a client-issued specification
	// request was given in time. When set, this check takes precedence: a
	// late answer precludes regardless of the other flags.
	RequestResponseTimely Tri
}

// Precluded decides whether the claim is procedurally forfeited. Returns
// ErrIndeterminate when a flag the active rule path needs is Unset, and
// ErrInvalidInput for an unknown kind.
func (n Notice) Precluded() (bool, error) {
	// A client-issued specification request creates an independent bar
	// that dominates the kind-specific checks.
	if n.Kind == NoticeRequestResponse {
		if !n.RequestResponseTimely.Known() {
			return false, indeterminate("request_response_timely")
		}
		return n.RequestResponseTimely == False, nil
	}
	if n.RequestResponseTimely == False {
		return true, nil
	}

	switch n.Kind {
	case NoticeProvisional:
		if !n.ProvisionalTimely.Known() {
			return false, indeterminate("provisional_timely")
		}
		return n.ProvisionalTimely == False, nil

	case NoticeSpecified:
		if !n.PriorProvisionalTimely.Known() {
			return false, indeterminate("prior_provisional_timely")
		}
		if n.PriorProvisionalTimely == True {
			// A timely provisional notice preserved the claim; only the
			// specification deadline can still forfeit it.
			if !n.SpecifiedTimely.Known() {
				return false, indeterminate("specified_timely")
			}
			return n.SpecifiedTimely == False, nil
		}
		if !n.ProvisionalTimely.Known() {
			return false, indeterminate("provisional_timely")
		}
		return n.ProvisionalTimely == False, nil

	default:
		return false, invalid("unknown notice kind %q", n.Kind)
	}
}

// LineItemKind identifies a special line item on a compensation or
// acceleration claim. Each carries its own independent notice.
type LineItemKind string

const (
	LineSiteOverhead     LineItemKind = "site_overhead"
	LineProductivityLoss LineItemKind = "productivity_loss"
)

// linePrecluded decides preclusion for a special line item, which has a
// single independent notice-timely flag. Preclusion of one line item
// never touches another or the main claim.
func linePrecluded(kind LineItemKind, noticeTimely Tri) (bool, error) {
	if kind != LineSiteOverhead && kind != LineProductivityLoss {
		return false, invalid("unknown line item kind %q", kind)
	}
	if !noticeTimely.Known() {
		return false, indeterminate(string(kind) + "_notice_timely")
	}
	return noticeTimely == False, nil
}
