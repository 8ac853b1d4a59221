package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/zipreport/tagtmpl"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	const source = `<h1><=title/></h1>
<ul>
<=items first="<li class=\"first\">"><:/>: <: v + "!" /></=items>
</ul>
<:cond>
<:case cond="len(items) == 0">no items</:case>
<:case cond="true">total <: len(items) /> item(s)</:case>
</:cond>
`

	p, err := tagtmpl.New(source,
		tagtmpl.WithNamespace("example"),
		tagtmpl.WithErrorPolicy(tagtmpl.PolicyWarn),
		tagtmpl.WithErrorPrefix("[example] "),
		tagtmpl.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("building processor", zap.Error(err))
	}

	out, err := p.Evaluate(nil,
		tagtmpl.BindString("title", "Shopping List"),
		tagtmpl.BindList("items", "bread", "milk", "eggs"),
	)
	if err != nil {
		logger.Fatal("evaluating template", zap.Error(err))
	}

	fmt.Print(out)

	for _, d := range p.Errors() {
		fmt.Fprintln(os.Stderr, d.Error())
	}
}
