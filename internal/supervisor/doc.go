// Package supervisor builds display devices from configuration and runs
// them: activation, bus linking, health reporting and telemetry.
//
// Startup order for each device is Activate then LinkToBus. A device whose
// driver fails to register stays inactive but is still linked, so its
// status joins report the failure. Shutdown unlinks then deactivates.
package supervisor
