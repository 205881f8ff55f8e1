package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"meterscan/process/report"
)

func main() {
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to report (YYYY-MM)")
	perMeter := flag.Bool("meters", false, "list reading counts per meter serial")
	flag.Parse()

	if os.Getenv("DB_DSN") == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}
	if _, _, err := report.MonthBounds(*month); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	report.RunReport(*month, *perMeter)
}
