package agent

// buildBranchPath joins parent and child into a dotted branch identifier.
// Branches isolate child-agent state mutations; either side may be empty,
// in which case the other is returned as-is.
func buildBranchPath(parent, child string) string {
	switch {
	case parent == "":
		return child
	case child == "":
		return parent
	default:
		return parent + "." + child
	}
}
