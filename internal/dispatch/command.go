package dispatch

// ChildArgs builds the argv (after the executable) that re-invokes the
// controller in headless single-task mode. The child flag parser accepts
// exactly this set; keep the two in lockstep.
func ChildArgs(taskID, profileName, prompt, model string) []string {
	args := []string{
		"child",
		"--task-id", taskID,
		"--agent", profileName,
		"--prompt", prompt,
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}
