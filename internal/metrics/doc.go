// Package metrics exports scenario execution metrics to Prometheus.
//
// Exposed series, all under the coherence namespace:
//
//	coherence_steps_total{scenario,step,result}
//	coherence_scenarios_total{result}
//	coherence_polls_total{scenario}
//	coherence_scenario_duration_seconds{result}
package metrics
