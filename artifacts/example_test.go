package artifacts_test

import (
	"fmt"

	"github.com/forensicgo/collector/artifacts"
)

func ExampleList_With() {
	l := artifacts.New("/etc/passwd", "/var/log").With("/srv/app/logs", "/etc/passwd")
	for _, p := range l.Paths() {
		fmt.Println(p)
	}
	// Output:
	// /etc/passwd
	// /var/log
	// /srv/app/logs
}
