package goal

// subgoalTemplate is one fixed stage in a goal type's template; Hours
// is the unscaled estimate before the complexity multiplier.
type subgoalTemplate struct {
	Description     string
	Hours           float64
	SuccessCriteria []string
}

var templates = map[Type][]subgoalTemplate{
	TypeDevelopment: {
		{"Design the solution", 2, []string{"Design reviewed and approved"}},
		{"Implement the solution", 4, []string{"Implementation compiles and passes lint"}},
		{"Write automated tests", 2, []string{"Tests cover the new code path", "All tests pass"}},
		{"Document the change", 1, []string{"Change is documented for future maintainers"}},
	},
	TypeTesting: {
		{"Define the test plan", 1, []string{"Test plan covers the target scenarios"}},
		{"Implement test cases", 3, []string{"Test cases implemented and runnable"}},
		{"Execute tests and triage failures", 2, []string{"All test failures triaged", "Suite passes"}},
	},
	TypeDocumentation: {
		{"Outline the documentation structure", 1, []string{"Outline approved"}},
		{"Write the documentation content", 3, []string{"Content covers the outlined sections"}},
		{"Review and publish", 1, []string{"Reviewed by a second person", "Published"}},
	},
	TypeDeployment: {
		{"Prepare the deployment plan", 1, []string{"Rollback plan documented"}},
		{"Execute the deployment", 2, []string{"Deployment completes without error"}},
		{"Verify deployment health", 1, []string{"Health checks green", "No regression alerts"}},
	},
	TypeOptimization: {
		{"Profile current performance", 2, []string{"Bottleneck identified with data"}},
		{"Implement the optimization", 3, []string{"Optimization implemented"}},
		{"Measure the improvement", 1, []string{"Improvement confirmed against baseline"}},
	},
	TypeQuality: {
		{"Audit current quality gaps", 2, []string{"Gaps enumerated"}},
		{"Remediate findings", 3, []string{"Findings addressed"}},
		{"Verify the quality gate passes", 1, []string{"Quality gate green"}},
	},
	TypeWorkflow: {
		{"Map the current workflow", 1, []string{"Current workflow documented"}},
		{"Redesign the workflow steps", 2, []string{"Redesign approved"}},
		{"Roll out the new workflow", 2, []string{"Workflow adopted by the team"}},
	},
	TypeProcess: {
		{"Document the current process", 1, []string{"Current process documented"}},
		{"Define the improved process", 2, []string{"Improved process defined"}},
		{"Train and adopt the new process", 2, []string{"Team trained", "New process in use"}},
	},
}

// templateFor returns the fixed subgoal template for t, falling back
// to the development template for any unrecognized type.
func templateFor(t Type) []subgoalTemplate {
	if tmpl, ok := templates[t]; ok {
		return tmpl
	}
	return templates[TypeDevelopment]
}
