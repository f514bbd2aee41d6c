package agent

// MergeRequirements folds the model's reported requirements into the
// accumulated ones and returns a fresh map. The merge is monotonic: a key
// recorded in a prior turn survives unless the incoming value for that key is
// a non-nil replacement. Nil or omitted values never erase known constraints.
func MergeRequirements(old, incoming map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(old)+len(incoming))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range incoming {
		if v != nil {
			merged[k] = v
		}
	}
	return merged
}
