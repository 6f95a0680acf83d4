package evaluator

// copyChildren duplicates the child table; the children themselves are shared.
func copyChildren(src *Children) Children {
	var c Children
	for name, obj := range src.subObjs {
		c.SetChild(name, obj)
	}
	return c
}

// deepCopy clones data values for call-by-value parameters. Procedures,
// closures, classes, structs and singletons are returned as-is.
func deepCopy(obj Object) Object {
	switch obj := obj.(type) {
	case *Integer:
		return &Integer{Children: copyChildren(&obj.Children), Value: obj.Value}
	case *Float:
		return &Float{Children: copyChildren(&obj.Children), Value: obj.Value}
	case *String:
		return &String{Children: copyChildren(&obj.Children), Value: obj.Value}
	case *List:
		return &List{Children: copyChildren(&obj.Children), Elements: copyElements(obj.Elements)}
	case *Array:
		return &Array{Children: copyChildren(&obj.Children), Elements: copyElements(obj.Elements)}
	case *Dict:
		d := NewDict()
		d.Children = copyChildren(&obj.Children)
		for _, k := range obj.Keys {
			d.Set(k, deepCopy(obj.Pairs[k]))
		}
		return d
	case *Instance:
		props := make(map[string]Object, len(obj.Props))
		for k, v := range obj.Props {
			props[k] = deepCopy(v)
		}
		return &Instance{Children: copyChildren(&obj.Children), Class: obj.Class, Props: props}
	case *Record:
		return &Record{Children: copyChildren(&obj.Children)}
	case *Quoted:
		return &Quoted{Children: copyChildren(&obj.Children), Expr: obj.Expr}
	default:
		return obj
	}
}

func copyElements(elements []Object) []Object {
	out := make([]Object, len(elements))
	for i, e := range elements {
		out[i] = deepCopy(e)
	}
	return out
}

// copyProps clones a class property table one level deep.
func copyProps(props map[string]Object) map[string]Object {
	out := make(map[string]Object, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
