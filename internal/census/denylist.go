package census

// defaultDenylist holds OS and service processes that never count as
// application activity.
var defaultDenylist = []string{
	// Windows
	"system", "system idle process", "idle", "registry", "smss", "csrss", "wininit",
	"winlogon", "services", "lsass", "lsaiso", "svchost", "fontdrvhost", "dwm",
	"explorer", "sihost", "taskhostw", "ctfmon", "conhost", "runtimebroker",
	"searchhost", "searchindexer", "startmenuexperiencehost", "shellexperiencehost",
	"textinputhost", "spoolsv", "audiodg", "wmiprvse", "dllhost", "smartscreen",
	"securityhealthservice", "msmpeng", "memory compression", "taskmgr",
	// Linux
	"systemd", "systemd-journald", "systemd-logind", "systemd-udevd", "systemd-resolved",
	"kthreadd", "ksoftirqd", "kworker", "rcu_sched", "migration", "init", "dbus-daemon",
	"networkmanager", "polkitd", "udisksd", "rsyslogd", "cron", "sshd", "agetty",
	"xorg", "xwayland", "gnome-shell", "pipewire", "pulseaudio", "wireplumber",
	// macOS
	"launchd", "kernel_task", "windowserver", "mds", "mds_stores", "mdworker",
	"coreaudiod", "cfprefsd", "distnoted", "loginwindow", "finder", "dock",
	"systemuiserver", "controlcenter", "trustd", "syslogd", "hidd",
}

// defaultDisplayNames maps well-known process keys to friendly names
var defaultDisplayNames = map[string]string{
	"chrome":  "Google Chrome",
	"firefox": "Mozilla Firefox",
	"msedge":  "Microsoft Edge",
	"code":    "VS Code",
	"discord": "Discord",
	"spotify": "Spotify",
	"steam":   "Steam",
}
