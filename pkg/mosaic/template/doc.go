// Package template interpolates variables into view markup.
//
// Fragments reference route parameters and defaults with ${name}. Dotted
// names walk nested maps:
//
//	<h1>${title}</h1>
//	<p>Signed in as ${user.name}</p>
//
// Values are HTML-escaped unless they are wrapped in Raw:
//
//	vars := map[string]any{
//	    "title": "Q&A",               // -> Q&amp;A
//	    "badge": template.Raw("<b>"), // -> <b>
//	}
//
// Missing variables stay in place by default. Use WithMissingAction to
// blank them or report them as *UndefinedVariableError.
package template
