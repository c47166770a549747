// Package telemetry provides observability instrumentation for installkit.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus) behind one Telemetry value.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	sc := tel.StartStep(ctx, "install_schema")
//	res := doStep(sc.Ctx)
//	sc.End(res)
//
// Every step produces one span named "installer.<step>", increments
// installkit_steps_total{step,outcome} and observes
// installkit_step_duration_seconds{step}. Status queries publish
// installkit_status_signal{signal} gauges.
package telemetry
