package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
	tb "github.com/t7a/tallybase"
)

func init() {
	var debug string
	debug = os.Getenv("DEBUG")
	if debug == "1" {
		log.SetLevel(log.DebugLevel)
	}
	logrus.SetReportCaller(true)
	formatter := &logrus.TextFormatter{
		CallerPrettyfier: caller(),
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyFile: "caller",
		},
	}
	formatter.TimestampFormat = "15:04:05.999999999"
	logrus.SetFormatter(formatter)
}

// caller returns string presentation of log caller which is formatted as
// `/path/to/file.go:line_number`. e.g. `/internal/app/api.go:25`
func caller() func(*runtime.Frame) (function string, file string) {
	return func(f *runtime.Frame) (function string, file string) {
		p, _ := os.Getwd()
		return "", fmt.Sprintf("%s:%d", strings.TrimPrefix(f.File, p), f.Line)
	}
}

type Opts struct {
	Init      bool
	Add       bool
	Mark      bool
	Show      bool
	Log       bool
	Contexts  bool
	Current   bool
	Rate      bool
	Export    bool
	Summary   string   `docopt:"-m"`
	Units     string   `docopt:"-u"`
	Context   string   `docopt:"-c"`
	Timestamp string   `docopt:"-t"`
	Commits   []string `docopt:"-g"`
	Filename  string   `docopt:"-o"`
	Hash      string   `docopt:"<hash>"`
	State     string   `docopt:"<state>"`
	Name      string   `docopt:"<context>"`
	RateVal   string   `docopt:"<rate>"`
}

func main() {
	os.Exit(run())
}

func run() (rc int) {

	usage := `tallybase

Usage:
  tally init
  tally add -m <summary> -u <units> [-c <context>] [-t <timestamp>] [-g <commit>]...
  tally mark <hash> <state> [-t <timestamp>]
  tally show <hash>
  tally log [-c <context>]
  tally contexts
  tally current [<context>]
  tally rate [-c <context>] [<rate>]
  tally export [-c <context>] [-o <filename>]

Options:
  -h --help       Show this screen.
  --version       Show version.
  -m <summary>    Summary of the billable work.
  -u <units>      Billable units, greater than zero.
  -c <context>    Context name; defaults to the current context.
  -t <timestamp>  RFC 3339 instant; defaults to now.
  -g <commit>     Git commit hash, repeatable.
  -o <filename>   Write output to a file.
`
	parser := &docopt.Parser{OptionsFirst: false}
	o, _ := parser.ParseArgs(usage, os.Args[1:], "0.0")
	var opts Opts
	err := o.Bind(&opts)
	if err != nil {
		log.Error(err)
		return 22
	}
	log.Debug(opts)

	switch true {
	case opts.Init:
		db, err := tb.Db{Dir: tb.DefaultDir()}.Create()
		if err != nil {
			log.Error(err)
			return 42
		}
		fmt.Println(db.Dir)
	case opts.Add:
		db, err := open()
		if err != nil {
			log.Error(err)
			return 42
		}
		units, err := strconv.ParseFloat(opts.Units, 64)
		if err != nil {
			log.Error(err)
			return 22
		}
		context, err := pickContext(db, opts.Context)
		if err != nil {
			log.Error(err)
			return 42
		}
		charge := tb.Charge{}.New(opts.Summary, units, context)
		charge.Timestamp = opts.Timestamp
		charge.GitCommits = opts.Commits
		hash, err := db.AddCharge(charge)
		if err != nil {
			log.Error(err)
			return 42
		}
		fmt.Println(hash)
	case opts.Mark:
		db, err := open()
		if err != nil {
			log.Error(err)
			return 42
		}
		if opts.Timestamp != "" {
			at, err := time.Parse(time.RFC3339Nano, opts.Timestamp)
			if err != nil {
				log.Error(err)
				return 22
			}
			db.Now = func() time.Time { return at }
		}
		newhash, err := db.Mark(opts.Hash, opts.State)
		if err != nil {
			log.Error(err)
			return 42
		}
		fmt.Println(newhash)
	case opts.Show:
		db, err := open()
		if err != nil {
			log.Error(err)
			return 42
		}
		charge, err := db.GetCharge(opts.Hash)
		if err != nil {
			log.Error(err)
			return 42
		}
		if charge == nil {
			log.Errorf("charge not found: %s", opts.Hash)
			return 44
		}
		printCharge(charge)
	case opts.Log:
		db, err := open()
		if err != nil {
			log.Error(err)
			return 42
		}
		context, err := pickContext(db, opts.Context)
		if err != nil {
			log.Error(err)
			return 42
		}
		charges, err := db.History(context)
		if err != nil {
			log.Error(err)
			return 42
		}
		for _, charge := range charges {
			fmt.Printf("%s %s %s %g %s\n",
				charge.Id[:8], charge.Timestamp, charge.State, charge.Units, charge.Summary)
		}
	case opts.Contexts:
		db, err := open()
		if err != nil {
			log.Error(err)
			return 42
		}
		names, err := db.ListContexts()
		if err != nil {
			log.Error(err)
			return 42
		}
		current, err := db.CurrentContext()
		if err != nil {
			log.Error(err)
			return 42
		}
		for _, name := range names {
			marker := " "
			if name == current {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
	case opts.Current:
		db, err := open()
		if err != nil {
			log.Error(err)
			return 42
		}
		if opts.Name == "" {
			current, err := db.CurrentContext()
			if err != nil {
				log.Error(err)
				return 42
			}
			fmt.Println(current)
			break
		}
		if err := db.CreateContextIfMissing(opts.Name); err != nil {
			log.Error(err)
			return 42
		}
		if err := db.SetCurrentContext(opts.Name); err != nil {
			log.Error(err)
			return 42
		}
		fmt.Println(opts.Name)
	case opts.Rate:
		db, err := open()
		if err != nil {
			log.Error(err)
			return 42
		}
		context, err := pickContext(db, opts.Context)
		if err != nil {
			log.Error(err)
			return 42
		}
		if opts.RateVal == "" {
			rate, ok, err := db.GetRate(context)
			if err != nil {
				log.Error(err)
				return 42
			}
			if !ok {
				fmt.Println("unset")
				break
			}
			fmt.Printf("%g\n", rate)
			break
		}
		rate, err := strconv.ParseFloat(opts.RateVal, 64)
		if err != nil {
			log.Error(err)
			return 22
		}
		if err := db.SetRate(context, rate); err != nil {
			log.Error(err)
			return 42
		}
		fmt.Printf("%g\n", rate)
	case opts.Export:
		db, err := open()
		if err != nil {
			log.Error(err)
			return 42
		}
		context, err := pickContext(db, opts.Context)
		if err != nil {
			log.Error(err)
			return 42
		}
		out := os.Stdout
		if opts.Filename != "" {
			out, err = os.Create(opts.Filename)
			if err != nil {
				log.Error(err)
				return 42
			}
			defer out.Close()
		}
		n, err := db.ExportHistory(out, context)
		if err != nil {
			log.Error(err)
			return 42
		}
		if opts.Filename != "" {
			fmt.Printf("%d charges\n", n)
		}
	}
	return 0
}

func open() (*tb.Db, error) {
	return tb.Open(tb.DefaultDir())
}

func pickContext(db *tb.Db, flag string) (context string, err error) {
	if flag != "" {
		return flag, nil
	}
	return db.CurrentContext()
}

func printCharge(charge *tb.Charge) {
	fmt.Printf("charge %s\n", charge.Id)
	if charge.Parent != "" {
		fmt.Printf("parent %s\n", charge.Parent)
	}
	fmt.Printf("context %s\n", charge.Context)
	fmt.Printf("state %s\n", charge.State)
	fmt.Printf("units %g\n", charge.Units)
	fmt.Printf("date %s\n", charge.Timestamp)
	for _, commit := range charge.GitCommits {
		fmt.Printf("commit %s\n", commit)
	}
	fmt.Printf("\n    %s\n", charge.Summary)
}
